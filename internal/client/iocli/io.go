// Package iocli is the terminal surface of the CLI: output, line input and
// secret input.
package iocli

//go:generate moq -out io_mock.go . IO

// IO
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadSecret(prompt string) (string, error)
}
