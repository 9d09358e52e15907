// Package semtok decodes the delta-encoded textDocument/semanticTokens/full
// stream against a file's contents and exposes a queryable Document.
package semtok

import (
	"strings"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/internal/lspdriver"
	"github.com/csc-dev/commonsensecoder/internal/quirks"
)

// Legend is the immutable token type/modifier vocabulary extracted from the
// server's semantic tokens capabilities during initialize.
type Legend struct {
	types     []string
	modifiers []string
}

// New builds a Legend from the raw type/modifier arrays the server reported.
func New(types, modifiers []string) Legend {
	return Legend{types: append([]string(nil), types...), modifiers: append([]string(nil), modifiers...)}
}

// FromDriverLegend adapts an lspdriver.TokenLegend.
func FromDriverLegend(l lspdriver.TokenLegend) Legend {
	return New(l.Types, l.Modifiers)
}

// Decode turns a delta-encoded token stream into a Document, validating
// each token's line and byte range against fileContent.
//
// The cursor rule: line accumulates delta_line; start resets to delta_start
// when delta_line>0, otherwise accumulates delta_start. This must match the
// server's encoding exactly or ranges drift off into neighboring tokens.
func (l Legend) Decode(fileContent string, data []uint32) (*Document, error) {
	if len(data)%5 != 0 {
		return nil, errors.Newf("semantic token stream length %d is not a multiple of 5", len(data))
	}
	lines := strings.Split(fileContent, "\n")

	var line, start uint32
	tokens := make([]Token, 0, len(data)/5)

	for i := 0; i < len(data); i += 5 {
		deltaLine := data[i]
		deltaStart := data[i+1]
		length := data[i+2]
		typeIdx := data[i+3]
		modBitset := data[i+4]

		line += deltaLine
		if deltaLine > 0 {
			start = deltaStart
		} else {
			start += deltaStart
		}

		if int(typeIdx) >= len(l.types) {
			return nil, errors.Newf("invalid token type index: %d", typeIdx)
		}
		tokenType := l.types[typeIdx]

		if int(line) >= len(lines) {
			return nil, errors.Newf("token line out of bounds: %d", line)
		}
		lineText := lines[line]
		end := start + length
		if int(end) > len(lineText) {
			return nil, errors.Newf("token range out of bounds: %d..%d", start, end)
		}
		text := lineText[start:end]

		tokens = append(tokens, Token{
			Line:      line + 1,
			Character: start + 1,
			Type:      tokenType,
			modBitset: modBitset,
			legend:    &l,
			Text:      text,
		})
	}

	return &Document{tokens: tokens}, nil
}

// Document is the ordered token list decoded for one file.
type Document struct {
	tokens []Token
}

// Query returns the tokens whose text equals name, narrowed to the subset
// closest to the given 1-based line/character hints (ties included). A nil
// hint is treated as "don't care" for that axis and always sorts before any
// concrete distance on that axis.
func (d *Document) Query(name string, line, character *uint32) []Token {
	var matches []Token
	for _, t := range d.tokens {
		if t.Text == name {
			matches = append(matches, t)
		}
	}
	if len(matches) <= 1 {
		return matches
	}

	type key struct {
		hasLine, hasChar   bool
		lineDist, charDist uint32
	}
	keyOf := func(t Token) key {
		k := key{}
		if line != nil {
			k.hasLine = true
			k.lineDist = absDiff(*line, t.Line)
		}
		if character != nil {
			k.hasChar = true
			k.charDist = absDiff(*character, t.Character)
		}
		return k
	}
	less := func(a, b key) bool {
		if a.hasLine != b.hasLine {
			return !a.hasLine
		}
		if a.hasLine && a.lineDist != b.lineDist {
			return a.lineDist < b.lineDist
		}
		if a.hasChar != b.hasChar {
			return !a.hasChar
		}
		if a.hasChar && a.charDist != b.charDist {
			return a.charDist < b.charDist
		}
		return false
	}

	best := keyOf(matches[0])
	for _, t := range matches[1:] {
		if k := keyOf(t); less(k, best) {
			best = k
		}
	}
	var out []Token
	for _, t := range matches {
		if k := keyOf(t); !less(k, best) && !less(best, k) {
			out = append(out, t)
		}
	}
	return out
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// Token is one decoded, located semantic token.
type Token struct {
	Line      uint32 // 1-based
	Character uint32 // 1-based
	Type      string
	Text      string

	modBitset uint32
	legend    *Legend
}

// Modifiers returns the set modifier names for this token in legend order.
func (t Token) Modifiers() []string {
	var out []string
	for i, name := range t.legend.modifiers {
		if t.modBitset&(1<<uint(i)) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// ModifierScore sums q's per-modifier weights over this token's set
// modifiers, for future candidate ranking: find_symbol/symbol_info don't
// currently rank by it.
func (t Token) ModifierScore(q quirks.Quirks) int {
	score := 0
	for _, m := range t.Modifiers() {
		score += q.ModifierScore(m)
	}
	return score
}
