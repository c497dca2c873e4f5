package filter

import "strings"

// wordKind classifies one lexical unit of a raw client filter string.
// Mirrors the FilterWord tagging in the spec: None is a separator only
// and is never itself emitted into the canonical output.
type wordKind int

const (
	wNone wordKind = iota
	wOpenBracket
	wCloseBracket
	wComparison
	wLogical
	wString
	wOther
)

// word is one classified token, carrying its literal source text.
// For wString, text is the inner literal content (quotes stripped);
// quoteCh records which quote character bounded it.
type word struct {
	kind    wordKind
	text    string
	quoteCh byte
}

func isComparisonByte(b byte) bool {
	return b == '=' || b == '!' || b == '<' || b == '>'
}

func isQuoteByte(b byte) bool {
	return b == '\'' || b == '"'
}

// reclassifyOther promotes an Other word to Logical or Comparison based on
// its lowercase spelling, per the emission rules' first step.
func reclassifyOther(w word) word {
	if w.kind != wOther {
		return w
	}
	switch strings.ToLower(strings.TrimSpace(w.text)) {
	case "and", "or":
		w.kind = wLogical
	case "like", "not":
		w.kind = wComparison
	}
	return w
}
