// Package chunker implements the fragment joiner (spec §4.1) and text
// splitter (spec §4.3) that turn raw extracted lines into embeddable
// chunks.
package chunker

import (
	"strings"
	"unicode"
)

// JoinTextFragments reassembles per-line PDF fragments into sentences
// (spec §4.1). Input is an ordered sequence of trimmed, non-empty lines;
// output is an ordered sequence of joined sentences.
func JoinTextFragments(fragments []string) []string {
	if len(fragments) == 0 {
		return nil
	}

	var result []string
	var current strings.Builder

	for _, fragment := range fragments {
		shouldStartNew := ShouldStartNewSentence(current.String(), fragment)

		if shouldStartNew && current.Len() > 0 {
			result = append(result, strings.TrimSpace(current.String()))
			current.Reset()
			current.WriteString(fragment)
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(fragment)
	}

	if current.Len() > 0 {
		result = append(result, strings.TrimSpace(current.String()))
	}

	return result
}

// ShouldStartNewSentence reports whether fragment should begin a new
// sentence rather than continue current: current is non-empty, ends with
// one of `. ! ? :`, and fragment's first rune is uppercase (spec §4.1).
// An empty current always reports true; JoinTextFragments separately guards
// against starting a "new" sentence when there is nothing to flush yet.
func ShouldStartNewSentence(current, fragment string) bool {
	if current == "" {
		return true
	}
	trimmedCurrent := strings.TrimRight(current, " \t")
	if trimmedCurrent == "" {
		return true
	}
	last := rune(trimmedCurrent[len(trimmedCurrent)-1])
	endsSentence := last == '.' || last == '!' || last == '?' || last == ':'
	if !endsSentence {
		return false
	}
	if fragment == "" {
		return false
	}
	first := []rune(fragment)[0]
	return unicode.IsUpper(first)
}
