// Package chunk splits documents into overlapping word-bounded windows for
// embedding and indexing.
package chunk

import (
	"iter"
	"strings"
)

// Default window sizes, tuned for ~512-token embedding models.
const (
	DefaultMaxWords = 800
	DefaultOverlap  = 160
)

// Split returns a lazy sequence of overlapping chunks of text. Tokens are
// whitespace-separated words; each chunk holds at most maxWords words and
// consecutive chunks overlap by overlap words, except possibly the final pair
// when the tail is shorter than the overlap. An empty text yields no chunks.
//
// The sequence is restartable: ranging over it twice recomputes the same
// chunks from the same input.
func Split(text string, maxWords, overlap int) iter.Seq[string] {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if overlap < 0 || overlap >= maxWords {
		overlap = maxWords / 5
	}

	return func(yield func(string) bool) {
		words := strings.Fields(text)
		for i := 0; i < len(words); {
			j := min(len(words), i+maxWords)
			if !yield(strings.Join(words[i:j], " ")) {
				return
			}
			// Advance by the stride, but never behind the emitted window's
			// end: once a chunk reaches the tail, the loop terminates.
			i = max(i+maxWords-overlap, j)
		}
	}
}

// Collect materializes Split into a slice.
func Collect(text string, maxWords, overlap int) []string {
	var chunks []string
	for c := range Split(text, maxWords, overlap) {
		chunks = append(chunks, c)
	}
	return chunks
}
