package chunk

import "strings"

// buildAnchorChunk synthesizes a file-header chunk summarizing imports and
// exports, so a search that should land "somewhere in this file" has a
// single well-scored entry point even when the real match is buried in an
// unlabeled block. Returns nil when the tree has neither import nor export
// statements (nothing worth anchoring).
func buildAnchorChunk(source []byte, tree *Tree, language string) *Chunk {
	if tree == nil || tree.Root == nil {
		return nil
	}

	var imports, exports []string
	for _, child := range tree.Root.Children {
		switch child.Type {
		case "import_statement", "import_declaration":
			if line := firstLine(child.GetContent(source)); line != "" {
				imports = append(imports, line)
			}
		case "export_statement":
			inner := unwrapExport(child)
			name := getNodeName(inner, source)
			if name == "" {
				name = firstLine(child.GetContent(source))
			}
			if name != "" {
				exports = append(exports, name)
			}
		}
	}

	if len(imports) == 0 && len(exports) == 0 {
		return nil
	}

	var b strings.Builder
	if len(imports) > 0 {
		b.WriteString("Imports:\n")
		for _, imp := range imports {
			b.WriteString("  ")
			b.WriteString(imp)
			b.WriteString("\n")
		}
	}
	if len(exports) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Exports:\n")
		for _, exp := range exports {
			b.WriteString("  ")
			b.WriteString(exp)
			b.WriteString("\n")
		}
	}

	return &Chunk{
		Content:     strings.TrimRight(b.String(), "\n"),
		ContentType: ContentTypeCode,
		Language:    language,
		StartLine:   0,
		EndLine:     1,
		ChunkType:   "Other",
		IsAnchor:    true,
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
