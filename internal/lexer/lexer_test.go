package lexer

import (
	"testing"

	"github.com/sisp-lang/sisp/internal/token"
)

func collect(src string) []token.Token {
	l := New(src)
	var toks []token.Token
	for {
		tok := l.Peek()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
		l.Advance()
	}
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	toks := collect("def extern if then else for in binary unary var exit foo")
	wantKinds := []token.Kind{
		token.DEF, token.EXTERN, token.IF, token.THEN, token.ELSE,
		token.FOR, token.IN, token.BINARY, token.UNARY, token.VAR, token.EXIT,
		token.IDENT, token.EOF,
	}
	if len(toks) != len(wantKinds) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(wantKinds), toks)
	}
	for i, want := range wantKinds {
		if toks[i].Kind != want {
			t.Errorf("token %d: got kind %s, want %s", i, toks[i].Kind, want)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		src     string
		value   float64
		hasDot  bool
	}{
		{"42", 42, false},
		{"3.14", 3.14, true},
		{".5", 0.5, true},
	}
	for _, tt := range tests {
		toks := collect(tt.src)
		if toks[0].Kind != token.NUMBER {
			t.Fatalf("%q: got kind %s, want NUMBER", tt.src, toks[0].Kind)
		}
		if toks[0].Number != tt.value {
			t.Errorf("%q: got value %v, want %v", tt.src, toks[0].Number, tt.value)
		}
		if toks[0].HasDot != tt.hasDot {
			t.Errorf("%q: got HasDot %v, want %v", tt.src, toks[0].HasDot, tt.hasDot)
		}
	}
}

func TestLexerPunctuationAndArrow(t *testing.T) {
	toks := collect("(x: int) -> bool")
	wantKinds := []token.Kind{
		token.CHAR, token.IDENT, token.CHAR, token.TYPE_INT, token.CHAR,
		token.ARROW, token.TYPE_BOOL, token.EOF,
	}
	for i, want := range wantKinds {
		if toks[i].Kind != want {
			t.Errorf("token %d (%v): got kind %s, want %s", i, toks[i], toks[i].Kind, want)
		}
	}
}

func TestLexerLineComment(t *testing.T) {
	toks := collect("1 # this is a comment\n2")
	if len(toks) != 3 { // NUMBER, NUMBER, EOF
		t.Fatalf("got %d tokens, want 3: %v", len(toks), toks)
	}
	if toks[0].Number != 1 || toks[1].Number != 2 {
		t.Errorf("comment not skipped correctly: %v", toks)
	}
}

func TestLexerPositionTracking(t *testing.T) {
	toks := collect("ab\ncd")
	if toks[0].Pos != (token.Position{Line: 1, Col: 1}) {
		t.Errorf("first token pos = %v, want 1:1", toks[0].Pos)
	}
	if toks[1].Pos.Line != 2 {
		t.Errorf("second token should be on line 2, got %v", toks[1].Pos)
	}
}

func TestLexerUserOperatorCharsPassThrough(t *testing.T) {
	// Unknown characters are not lexer errors; the parser decides whether
	// '^' and friends are valid user-declared operators.
	toks := collect("3 ^ 4")
	if toks[1].Kind != token.CHAR || toks[1].Ch != '^' {
		t.Errorf("expected CHAR '^', got %v", toks[1])
	}
}

// TestLexerRoundTripLexemes verifies the round-trip-lex property:
// concatenating token lexemes reconstructs the source modulo whitespace
// and stripped comments.
func TestLexerRoundTripLexemes(t *testing.T) {
	src := "def sq(x: float) -> float { x * x }"
	toks := collect(src)
	var rebuilt string
	for _, tok := range toks {
		if tok.Kind == token.EOF {
			continue
		}
		if tok.Kind == token.CHAR {
			rebuilt += string(tok.Ch)
		} else {
			rebuilt += tok.Lexeme
		}
		rebuilt += " "
	}
	want := "def sq ( x : float ) -> float { x * x } "
	if rebuilt != want {
		t.Errorf("round trip mismatch:\n got: %q\nwant: %q", rebuilt, want)
	}
}
