package token_test

import (
	"testing"

	"github.com/mna/bryony/lang/token"
	"github.com/stretchr/testify/assert"
)

func TestKeywords(t *testing.T) {
	for _, kw := range []string{
		"and", "class", "else", "false", "for", "fun", "if", "nil",
		"or", "print", "return", "super", "this", "true", "var", "while",
	} {
		kind, ok := token.Keywords[kw]
		assert.True(t, ok, "expected %q to be a keyword", kw)
		assert.Equal(t, kw, kind.String())
	}

	_, ok := token.Keywords["notakeyword"]
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "(", token.LPAREN.String())
	assert.Equal(t, "!=", token.BANG_EQ.String())
	assert.Equal(t, "eof", token.EOF.String())
}
