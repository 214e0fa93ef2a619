package analysis

import "strings"

// containsTerm reports whether term occurs in text starting at a word
// boundary. The end is left open so "sanction" also matches "sanctions",
// while "war" does not match inside "award". Terms in closedTerms must end
// a word as well.
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return false
		}
		pos := offset + idx
		if (pos == 0 || !isWordByte(text[pos-1])) && (!closedTerms[term] || endsWord(text, pos+len(term))) {
			return true
		}
		offset = pos + 1
	}
	return false
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if containsTerm(text, term) {
			return true
		}
	}
	return false
}

// matchAll returns the terms found in text, in table order
func matchAll(text string, terms []string) []string {
	var matched []string
	for _, term := range terms {
		if containsTerm(text, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

// endsWord reports whether a word ends at end, allowing a plural "s"
func endsWord(text string, end int) bool {
	if end < len(text) && text[end] == 's' {
		end++
	}
	return end >= len(text) || !isWordByte(text[end])
}

// isWordByte treats ASCII letters, digits and any non-ASCII byte as word characters
func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b >= 0x80
}
