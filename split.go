package ragdoc

import (
	"strings"
	"unicode"
)

// Default chunk sizing, in estimated tokens.
const (
	DefaultMaxTokens     = 512
	DefaultOverlapTokens = 50
)

// boundaryRadius bounds how far, in characters, a cut may move from its
// target offset while looking for a natural boundary.
const boundaryRadius = 100

// oversizeFactor is the multiple of the budget above which a chunk is
// split again.
const oversizeFactor = 1.5

// SplitText splits text into overlapping chunks of at most maxTokens
// estimated tokens. Whitespace is normalized first. Cuts prefer sentence
// ends near the target offset, then the preceding whitespace, then a
// forced cut. The result is deterministic and non-empty for any text
// containing non-whitespace characters.
func SplitText(text string, maxTokens, overlapTokens int) []string {
	text = NormalizeSpace(text)
	if text == "" {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if EstimateTokens(text) <= maxTokens {
		return []string{text}
	}
	return splitRunes([]rune(text), maxTokens, overlapTokens)
}

func splitRunes(r []rune, maxTokens, overlapTokens int) []string {
	chunkChars := maxTokens * CharsPerToken
	overlapChars := overlapTokens * CharsPerToken
	if overlapChars >= chunkChars {
		overlapChars = chunkChars / 2
	}
	radius := min(boundaryRadius, chunkChars/4)

	var out []string
	start := 0
	for start < len(r) {
		end := start + chunkChars
		if end >= len(r) {
			out = appendChunk(out, string(r[start:]), maxTokens, overlapTokens)
			break
		}
		end = cutPoint(r, start, end, radius)
		out = appendChunk(out, string(r[start:end]), maxTokens, overlapTokens)
		if end >= len(r) {
			break
		}

		next := wordStart(r, end-overlapChars, end)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// appendChunk trims and appends a chunk, re-splitting it when it still
// exceeds the budget by more than oversizeFactor.
func appendChunk(out []string, chunk string, maxTokens, overlapTokens int) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return out
	}
	if float64(EstimateTokens(chunk)) > oversizeFactor*float64(maxTokens) {
		parts := splitRunes([]rune(chunk), maxTokens, overlapTokens)
		if len(parts) > 1 {
			return append(out, parts...)
		}
	}
	return append(out, chunk)
}

// cutPoint picks the end offset of the chunk starting at start whose
// nominal end is target. The returned offset is always greater than start.
func cutPoint(r []rune, start, target, radius int) int {
	lo := max(start+1, target-radius)
	hi := min(len(r), target+radius)

	best := -1
	for c := lo; c <= hi; c++ {
		if !isTerminator(r[c-1]) {
			continue
		}
		if c < len(r) && !unicode.IsSpace(r[c]) {
			continue
		}
		if best < 0 || abs(c-target) < abs(best-target) {
			best = c
		}
	}
	if best > 0 {
		return best
	}

	for c := target; c > start; c-- {
		if unicode.IsSpace(r[c]) {
			return c
		}
	}

	for c := target; c < hi; c++ {
		if unicode.IsSpace(r[c]) {
			return c
		}
	}
	return target
}

// wordStart moves pos forward to the start of the next word, staying
// below limit. Positions already at a word start are returned unchanged.
func wordStart(r []rune, pos, limit int) int {
	if pos <= 0 {
		return 0
	}
	if unicode.IsSpace(r[pos-1]) {
		return pos
	}
	for i := pos; i < limit; i++ {
		if unicode.IsSpace(r[i]) {
			return i + 1
		}
	}
	return pos
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
