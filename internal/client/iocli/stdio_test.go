package iocli

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStdio(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s", 1, "abc")

	assert.Equal(t, "hello world\ntest 1 abc", out.String())
}

func TestReadInput(t *testing.T) {
	var out bytes.Buffer
	stdio := NewStdio(strings.NewReader("  user input \nsecond"), &out)

	result, err := stdio.ReadInput("Prompt: ")
	require.NoError(t, err)
	assert.Equal(t, "user input", result)
	assert.Equal(t, "Prompt: ", out.String())

	// Последняя строка без перевода строки
	result, err = stdio.ReadInput("")
	require.NoError(t, err)
	assert.Equal(t, "second", result)

	_, err = stdio.ReadInput("")
	assert.ErrorIs(t, err, io.EOF)
}

// Pipe не терминал, секрет читается как обычная строка
func TestReadSecret_NotTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	go func() {
		_, _ = w.Write([]byte("token-value\n"))
		_ = w.Close()
	}()
	t.Cleanup(func() { _ = r.Close() })

	stdio := NewStdio(r, io.Discard)
	secret, err := stdio.ReadSecret("Token: ")
	require.NoError(t, err)
	assert.Equal(t, "token-value", secret)
}
