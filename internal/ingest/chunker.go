package ingest

// SplitText breaks text into chunks of at most size characters with the
// given overlap between consecutive chunks. Chunk boundaries back off to the
// nearest sentence end (., !, ?, newline) as long as that keeps the chunk
// above half the target size. Text at or under the size limit is returned as
// a single chunk. Sizes are in runes, not bytes, so multi-byte characters
// never get split.
func SplitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	if overlap >= size {
		overlap = size - 1
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Back off to a sentence boundary, but never below half a chunk.
		for end > start+size/2 && !isSentenceEnd(runes[end]) {
			end--
		}

		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			// Degenerate input with no boundaries; force progress.
			next = end
		}
		start = next
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
