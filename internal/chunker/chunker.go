// Package chunker splits document text into bounded, overlapping segments
// sized for embedding.
package chunker

import (
	"regexp"
	"strings"
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// Chunk splits text into segments of at most maxChars characters, seeding
// each new segment with the trailing overlapChars of the one just closed so
// context survives the cut.
//
// Paragraphs (blank-line separated) are accumulated greedily. A paragraph
// that cannot fit even with a fresh buffer is hard-split at whitespace
// boundaries at or before maxChars. The one exception to the length bound is
// a single unbreakable token longer than maxChars, which passes through
// as-is.
//
// Empty or whitespace-only input yields no chunks. Invalid overlap values
// are treated as zero overlap.
func Chunk(text string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = 0
	}

	var paragraphs []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	buf := ""
	seeded := false // buf currently holds only an overlap seed

	for _, para := range paragraphs {
		switch {
		case buf == "":
			buf = para
		case !seeded && len(buf)+2+len(para) > maxChars:
			chunks = append(chunks, buf)
			if seed := tail(buf, overlapChars); seed != "" {
				buf = seed + " " + para
			} else {
				buf = para
			}
		case seeded:
			buf = buf + " " + para
		default:
			buf = buf + "\n\n" + para
		}
		seeded = false

		chunks, buf = hardSplit(chunks, buf, maxChars, overlapChars)
		if buf != "" && buf == tail(last(chunks), overlapChars) {
			seeded = true
		}
	}

	if buf != "" && !seeded {
		chunks = append(chunks, buf)
	}
	return chunks
}

// hardSplit repeatedly closes maxChars-bounded prefixes of buf at whitespace,
// carrying overlap forward, until the remainder fits. Returns the updated
// chunk list and remaining buffer.
func hardSplit(chunks []string, buf string, maxChars, overlapChars int) ([]string, string) {
	for len(buf) > maxChars {
		cut := strings.LastIndexAny(buf[:maxChars+1], " \n")
		if cut <= 0 {
			// Leading token longer than maxChars: emit it whole.
			end := strings.IndexAny(buf, " \n")
			if end < 0 {
				chunks = append(chunks, buf)
				return chunks, ""
			}
			cut = end
		}

		head := strings.TrimRight(buf[:cut], " \n")
		rest := strings.TrimLeft(buf[cut:], " \n")
		chunks = append(chunks, head)

		seed := tail(head, overlapChars)
		if rest == "" {
			// Paragraph consumed exactly; leave the seed for what follows.
			return chunks, seed
		}
		next := rest
		if seed != "" {
			next = seed + " " + rest
		}
		if len(next) >= len(buf) {
			// Seed would stall the split; drop it and keep consuming.
			next = rest
		}
		buf = next
	}
	return chunks, buf
}

// tail returns the last n characters of s, trimmed of leading whitespace.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return strings.TrimLeft(s[len(s)-n:], " \n")
}

func last(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	return chunks[len(chunks)-1]
}
