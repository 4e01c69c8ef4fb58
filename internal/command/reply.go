package command

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength is the longest text most chat platforms accept in one message.
const MaxMessageLength = 4000

// Reply is the answer to one message.
type Reply struct {
	Text    string
	Success bool
	// ExpireAfter is set on replies holding a secret; the front end removes the message after it.
	ExpireAfter time.Duration
}

// Secret reports whether the reply must be removed after ExpireAfter.
func (r Reply) Secret() bool {
	return r.ExpireAfter > 0
}

// Chunks splits the text into messages of at most maxLen bytes, preferring line breaks.
func (r Reply) Chunks(maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxMessageLength
	}

	if len(r.Text) <= maxLen {
		return []string{r.Text}
	}

	var (
		chunks []string
		buf    strings.Builder
	)

	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
	}

	for _, line := range strings.SplitAfter(r.Text, "\n") {
		for len(line) > maxLen {
			flush()

			cut := runeBoundary(line, maxLen)
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}

		if buf.Len()+len(line) > maxLen {
			flush()
		}

		buf.WriteString(line)
	}

	flush()

	return chunks
}

// runeBoundary returns the largest cut <= n that does not split a UTF-8 sequence.
func runeBoundary(s string, n int) int {
	for i := n; i > 0; i-- {
		if utf8.RuneStart(s[i]) {
			return i
		}
	}

	return n
}
