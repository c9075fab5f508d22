package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplit_WindowOffsets(t *testing.T) {
	chunks := Collect(words(2000), 800, 160)

	require.Len(t, chunks, 3)

	// Windows start at word offsets 0, 640, 1280.
	assert.True(t, strings.HasPrefix(chunks[0], "w0 "))
	assert.True(t, strings.HasPrefix(chunks[1], "w640 "))
	assert.True(t, strings.HasPrefix(chunks[2], "w1280 "))

	for i, c := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(c)), 800, "chunk %d too long", i)
	}

	// Last chunk covers the tail.
	assert.True(t, strings.HasSuffix(chunks[2], " w1999"))
}

func TestSplit_OverlapIsExact(t *testing.T) {
	chunks := Collect(words(2000), 800, 160)
	require.Len(t, chunks, 3)

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])

	// Tail of chunk 0 == head of chunk 1, overlap words each.
	assert.Equal(t, first[len(first)-160:], second[:160])
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	text := words(100)
	chunks := Collect(text, 800, 160)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_ExactWindowIsSingleChunk(t *testing.T) {
	chunks := Collect(words(800), 800, 160)
	require.Len(t, chunks, 1)
}

func TestSplit_EmptyTextYieldsNothing(t *testing.T) {
	assert.Empty(t, Collect("", 800, 160))
	assert.Empty(t, Collect("   \n\t ", 800, 160))
}

func TestSplit_NoGaps(t *testing.T) {
	const n = 1931 // deliberately not a multiple of the stride
	chunks := Collect(words(n), 800, 160)

	seen := make(map[string]bool, n)
	for _, c := range chunks {
		for _, w := range strings.Fields(c) {
			seen[w] = true
		}
	}

	assert.Len(t, seen, n, "every word must appear in at least one chunk")
}

func TestSplit_Restartable(t *testing.T) {
	seq := Split(words(1000), 300, 50)

	var first, second []string
	for c := range seq {
		first = append(first, c)
	}
	for c := range seq {
		second = append(second, c)
	}

	assert.Equal(t, first, second)
}

func TestSplit_DegenerateStrideStillTerminates(t *testing.T) {
	// overlap >= maxWords falls back to maxWords/5 so the stride stays positive.
	chunks := Collect(words(50), 10, 10)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(c)), 10)
	}
}
