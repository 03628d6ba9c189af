package chunk

import "strings"

// splitIfTooBig re-splits a chunk that exceeds the size limits into smaller
// windows. A chunk that is over the character limit but not over the line
// limit (e.g. a minified file) is split by character offset instead of line
// offset.
func splitIfTooBig(c *Chunk) []*Chunk {
	if len(c.Content) <= MaxChars && lineCount(c.Content) <= MaxLines {
		return []*Chunk{c}
	}

	lines := strings.Split(c.Content, "\n")
	if len(lines) <= MaxLines {
		return splitByChars(c)
	}

	stride := MaxLines - OverlapLines
	if stride < 1 {
		stride = 1
	}

	var out []*Chunk
	header := extractHeaderLine(c.Content)
	i := 0
	idx := 0
	for i < len(lines) {
		end := i + MaxLines
		if end > len(lines) {
			end = len(lines)
		}
		window := lines[i:end]
		isLast := end >= len(lines)

		// Drop tiny intermediate windows (the overlap with neighbors already
		// covers them); the first window and the final window are always
		// kept so no content at the start or end of the file is silently
		// dropped.
		if len(window) < 3 && idx != 0 && !isLast {
			i += stride
			idx++
			continue
		}

		content := strings.Join(window, "\n")
		if idx > 0 && c.ChunkType != "Block" && header != "" {
			content = header + "\n" + content
		}

		nc := cloneChunk(c)
		nc.Content = content
		nc.StartLine = c.StartLine + i
		nc.EndLine = c.StartLine + end
		out = append(out, nc)

		if isLast {
			break
		}
		i += stride
		idx++
	}
	if len(out) == 0 {
		return []*Chunk{c}
	}
	return out
}

func splitByChars(c *Chunk) []*Chunk {
	runes := []rune(c.Content)
	total := len(runes)
	if total <= MaxChars {
		return []*Chunk{c}
	}

	var out []*Chunk
	start := 0
	for start < total {
		end := start + MaxChars
		if end > total {
			end = total
		}
		nc := cloneChunk(c)
		nc.Content = string(runes[start:end])
		out = append(out, nc)
		if end >= total {
			break
		}
		start += StrideChars
	}
	return out
}

func cloneChunk(c *Chunk) *Chunk {
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func extractHeaderLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
