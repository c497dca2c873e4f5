// Package filter repairs malformed client filter strings into a canonical
// boolean predicate (Normalize, C1) and evaluates that predicate against a
// server record (Compile and Eval, C2). The normaliser never fails:
// pathological input yields a predicate Compile may reject; the caller of
// Compile treats such a rejection as match-all.
package filter

import (
	"strings"

	"github.com/bf2ms/queryserver/pkg/schema"
)

// Normalize repairs a raw client filter string into a canonical predicate
// string the parser in parser.go accepts. Empty input yields empty output.
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	// '[' needs no escaping here: globMatch only ever treats '%' and '_' as
	// wildcards, so a literal '[' already compares and matches literally.
	words := lex(raw)

	var b builder
	for _, w := range words {
		w = reclassifyOther(w)
		if w.kind == wOther {
			emitSplitOther(&b, w.text)
			continue
		}
		b.emit(w)
	}
	return b.out.String()
}

// lex scans src into a flat list of classified words. Brackets are always
// their own word; a word otherwise ends when the character class changes.
// Quote characters enter literal-scan mode (scanString).
func lex(src string) []word {
	var out []word
	i := 0
	n := len(src)
	for i < n {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			out = append(out, word{kind: wOpenBracket, text: "("})
			i++
		case ch == ')':
			out = append(out, word{kind: wCloseBracket, text: ")"})
			i++
		case isQuoteByte(ch):
			w, next := scanString(src, i)
			out = append(out, w)
			i = next
		case isComparisonByte(ch):
			j := i + 1
			for j < n && isComparisonByte(src[j]) {
				j++
			}
			out = append(out, word{kind: wComparison, text: src[i:j]})
			i = j
		default:
			j := i + 1
			for j < n {
				c := src[j]
				if c == ' ' || c == '\t' || c == '\n' || c == '\r' ||
					c == '(' || c == ')' || isQuoteByte(c) || isComparisonByte(c) {
					break
				}
				j++
			}
			out = append(out, word{kind: wOther, text: src[i:j]})
			i = j
		}
	}
	return out
}

// scanString handles the unescaped-quote literal-scan mode from the spec:
// the client never escapes quotes inside string literals, so the closing
// quote must be inferred from context. Returns the String word and the
// index just past the consumed input.
func scanString(src string, start int) (word, int) {
	q := src[start]
	rest := src[start+1:]

	var occ []int // absolute positions (in src) of further q bytes
	for i := 0; i < len(rest); i++ {
		if rest[i] == q {
			occ = append(occ, start+1+i)
		}
	}

	var closeIdx int
	hasClose := true
	switch len(occ) {
	case 0:
		hasClose = false
	case 1:
		closeIdx = occ[0]
	default:
		beganWithPercent := len(rest) > 0 && rest[0] == '%'
		closeIdx = occ[len(occ)-1] // last candidate always accepted as fallback
		for idx, cand := range occ {
			last := idx == len(occ)-1
			if !last {
				if beganWithPercent && (cand == 0 || src[cand-1] != '%') {
					continue
				}
				after := strings.TrimLeft(src[cand+1:], " \t")
				if !closingContextLooksRight(after) {
					continue
				}
			}
			closeIdx = cand
			break
		}
	}

	var inner string
	var next int
	if hasClose {
		inner = src[start+1 : closeIdx]
		next = closeIdx + 1
	} else {
		inner = src[start+1:]
		next = len(src)
	}

	return word{kind: wString, text: inner, quoteCh: q}, next
}

// closingContextLooksRight reports whether the (whitespace-trimmed) text
// following a candidate closing quote is consistent with that quote truly
// ending the literal: a bracket, a boolean connective, or the start of a
// filterable property name — or simply nothing (end of input).
func closingContextLooksRight(after string) bool {
	if after == "" {
		return true
	}
	if strings.HasPrefix(after, ")") || strings.HasPrefix(after, "(") {
		return true
	}
	lower := strings.ToLower(after)
	if strings.HasPrefix(lower, "and ") || strings.HasPrefix(lower, "or ") {
		return true
	}
	for name := range schema.Fields {
		if strings.HasPrefix(lower, name) {
			return true
		}
	}
	return false
}

// builder accumulates the canonical output, applying the spacing and
// auto-join rules between each previously emitted word and the next.
type builder struct {
	out  strings.Builder
	prev *word
}

func (b *builder) emit(w word) {
	if b.prev != nil {
		if b.prev.kind != wOpenBracket && w.kind != wCloseBracket {
			b.out.WriteByte(' ')
			if w.kind == wOther && b.prev.kind != wLogical && b.prev.kind != wComparison {
				b.out.WriteString("and ")
			} else if w.kind == wOpenBracket && (b.prev.kind == wOther || b.prev.kind == wString) {
				b.out.WriteString("and ")
			}
		}
	}
	b.out.WriteString(renderWord(w))
	wc := w
	b.prev = &wc
}

func renderWord(w word) string {
	if w.kind != wString {
		return w.text
	}
	q := w.quoteCh
	if q == 0 {
		q = '\''
	}
	inner := strings.ReplaceAll(w.text, string(q), "_")
	return string(q) + inner + string(q)
}

// emitSplitOther implements emission rule 6: an Other word whose text
// contains a filterable property name (mashed together with other
// characters, e.g. "0gametype") is split around the property name so each
// piece goes through the normal join logic separately.
func emitSplitOther(b *builder, text string) {
	prefix, prop, suffix, found := splitAroundField(text)
	if !found {
		b.emit(word{kind: wOther, text: text})
		return
	}
	if prefix != "" {
		b.emit(word{kind: wOther, text: prefix})
	}
	b.emit(word{kind: wOther, text: prop})
	if suffix != "" {
		emitSplitOther(b, suffix)
	}
}

// splitAroundField finds the earliest (longest-on-tie) filterable property
// name inside text and splits text into the parts before and after it.
func splitAroundField(text string) (prefix, prop, suffix string, found bool) {
	lower := strings.ToLower(text)
	bestIdx := -1
	bestLen := 0
	for name := range schema.Fields {
		idx := strings.Index(lower, name)
		if idx < 0 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx || (idx == bestIdx && len(name) > bestLen) {
			bestIdx = idx
			bestLen = len(name)
		}
	}
	if bestIdx == -1 {
		return "", "", "", false
	}
	return text[:bestIdx], text[bestIdx : bestIdx+bestLen], text[bestIdx+bestLen:], true
}
