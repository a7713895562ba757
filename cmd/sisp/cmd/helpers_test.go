package cmd

import (
	"bytes"
	"os"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it. The commands under test write straight to
// os.Stdout, so this is the only way to observe their output from a test.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}
