package validation

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fieldsync/internal/syncerr"
)

func TestGate_Check(t *testing.T) {
	gate := New(
		Required(),
		MinLength(3),
		MaxLength(10),
		Pattern(regexp.MustCompile(`^[A-Za-z ]+$`), "value can only contain letters and spaces"),
	)

	tests := []struct {
		name      string
		value     string
		wantCodes []string
	}{
		{name: "accepted", value: "ABC"},
		{name: "accepted with spaces", value: "Order one"},
		{name: "empty", value: "", wantCodes: []string{CodeRequired}},
		{name: "whitespace", value: "   ", wantCodes: []string{CodeRequired}},
		{name: "too short", value: "AB", wantCodes: []string{CodeTooShort}},
		{name: "too long", value: "ABCDEFGHIJK", wantCodes: []string{CodeTooLong}},
		{name: "too short and bad chars", value: "A1", wantCodes: []string{CodeTooShort, CodePattern}},
		{name: "unicode counted as runes", value: "ééé", wantCodes: []string{CodePattern}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gate.Check(tt.value)

			if len(tt.wantCodes) == 0 {
				assert.True(t, result.Accepted())
				assert.NoError(t, gate.Err("title", result))
				return
			}

			require.False(t, result.Accepted())
			codes := make([]string, 0, len(result.Reasons))
			for _, r := range result.Reasons {
				codes = append(codes, r.Code)
			}
			assert.Equal(t, tt.wantCodes, codes)

			var vErr *syncerr.ValidationError
			require.ErrorAs(t, gate.Err("title", result), &vErr)
			assert.Equal(t, "title", vErr.Field)
			assert.Equal(t, result.Reasons, vErr.Reasons)
		})
	}
}

func TestGate_CheckIsPure(t *testing.T) {
	gate := New(Required(), MaxLength(3))

	first := gate.Check("ABCD")
	second := gate.Check("ABCD")
	assert.Equal(t, first, second)
}

func TestGate_NilAcceptsEverything(t *testing.T) {
	var gate *Gate
	assert.True(t, gate.Check("").Accepted())
}

func TestGate_InterpretMatchesLocalShape(t *testing.T) {
	gate := New(Required(), MaxLength(3))

	local := gate.Check("ABCD")
	server := gate.Interpret([]syncerr.Reason{
		{Code: CodeTooLong, Message: "value must not exceed 3 characters"},
		{Code: CodeTooLong, Message: "value must not exceed 3 characters"},
	})

	// Оба пути должны давать одинаковый (дедуплицированный) результат
	assert.Equal(t, local, server)
}

func TestGate_InterpretWithoutReasons(t *testing.T) {
	result := New().Interpret(nil)

	require.False(t, result.Accepted())
	assert.Equal(t, "rejected", result.Reasons[0].Code)
}

func TestRules_OneOfAndFunc(t *testing.T) {
	gate := New(
		OneOf("draft", "published"),
		Func("reserved", func(v string) error {
			if v == "published" {
				return errors.New("published is reserved")
			}
			return nil
		}),
	)

	assert.True(t, gate.Check("draft").Accepted())

	result := gate.Check("archived")
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, CodeNotAllowed, result.Reasons[0].Code)
	assert.Contains(t, result.Reasons[0].Message, "draft, published")

	result = gate.Check("published")
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, "reserved", result.Reasons[0].Code)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	titleGate := New(Required())
	registry.Register("title", titleGate)

	assert.Same(t, titleGate, registry.For("title"))
	assert.Nil(t, registry.For("notes"))
	assert.True(t, registry.For("notes").Check("").Accepted())

	fallback := New(MaxLength(5))
	registry.SetFallback(fallback)
	assert.Same(t, fallback, registry.For("notes"))

	var nilRegistry *Registry
	assert.Nil(t, nilRegistry.For("title"))
}
