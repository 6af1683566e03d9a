package scanner_test

import (
	"testing"

	"github.com/mna/bryony/lang/scanner"
	"github.com/mna/bryony/lang/token"
	"github.com/stretchr/testify/assert"
)

func scanAll(src string) []token.Token {
	s := scanner.New(src)
	var toks []token.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll("(){};,+-*!===<=>=!=<>/.")
	kinds := make([]token.Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []token.Kind{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.SEMICOLON,
		token.COMMA, token.PLUS, token.MINUS, token.STAR, token.BANG_EQ,
		token.EQ_EQ, token.LT_EQ, token.GT_EQ, token.BANG_EQ, token.LT, token.GT,
		token.SLASH, token.DOT, token.EOF,
	}, kinds)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll("123 45.67 0")
	assert.Equal(t, "123", toks[0].Lexeme)
	assert.Equal(t, token.NUMBER, toks[0].Kind)
	assert.Equal(t, "45.67", toks[1].Lexeme)
	assert.Equal(t, "0", toks[2].Lexeme)
}

func TestScanStringLiteral(t *testing.T) {
	toks := scanAll(`"hello world"`)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Lexeme)
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(`"abc`)
	assert.Equal(t, token.ILLEGAL, toks[0].Kind)
	assert.Equal(t, "Unterminated string.", toks[0].Lexeme)
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	toks := scanAll("foo bar_1 _x class fun while")
	assert.Equal(t, token.IDENT, toks[0].Kind)
	assert.Equal(t, token.IDENT, toks[1].Kind)
	assert.Equal(t, token.IDENT, toks[2].Kind)
	assert.Equal(t, token.CLASS, toks[3].Kind)
	assert.Equal(t, token.FUN, toks[4].Kind)
	assert.Equal(t, token.WHILE, toks[5].Kind)
}

func TestScanSkipsCommentsAndTracksLines(t *testing.T) {
	toks := scanAll("1 // a comment\n2")
	assert.Equal(t, "1", toks[0].Lexeme)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, "2", toks[1].Lexeme)
	assert.Equal(t, 2, toks[1].Line)
}

func TestScanEmitsEOF(t *testing.T) {
	toks := scanAll("")
	assert.Len(t, toks, 1)
	assert.Equal(t, token.EOF, toks[0].Kind)
}
