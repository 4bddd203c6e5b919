package text

import (
	"strings"
	"unicode"
)

// TokenKind classifies a piece of text for line breaking.
type TokenKind int

const (
	// Word is a run of non-space runes.
	Word TokenKind = iota
	// Space is a break opportunity. Collapsed runs produce one Space.
	Space
	// Newline is a forced break, only produced for preserved whitespace.
	Newline
)

// Token is one piece of tokenized text.
type Token struct {
	Kind TokenKind
	Text string
}

// Tokenize splits s into words and spaces. Without preserve, whitespace runs
// collapse to a single space the way normal CSS white-space does; with it,
// every space is kept and newlines force breaks.
func Tokenize(s string, preserve bool) []Token {
	var tokens []Token
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, Token{Kind: Word, Text: word.String()})
			word.Reset()
		}
	}

	for _, r := range s {
		switch {
		case preserve && r == '\n':
			flush()
			tokens = append(tokens, Token{Kind: Newline})
		case unicode.IsSpace(r):
			flush()
			if !preserve && len(tokens) > 0 && tokens[len(tokens)-1].Kind == Space {
				continue
			}
			tokens = append(tokens, Token{Kind: Space, Text: " "})
		default:
			word.WriteRune(r)
		}
	}
	flush()

	return tokens
}
