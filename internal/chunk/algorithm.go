package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

// Sliding-window tuning constants. These mirror the original smgrep chunker's
// constants so that chunk boundaries stay predictable across languages.
const (
	MaxLines     = 75
	MaxChars     = 2000
	OverlapLines = 10
	OverlapChars = 200
	StrideChars  = MaxChars - OverlapChars
	StrideLines  = MaxLines - OverlapLines
)

// definitionKinds is the fixed set of tree-sitter node kinds, across every
// supported grammar, that mark a named definition worth its own chunk.
var definitionKinds = map[string]bool{
	"function_declaration":   true,
	"function_definition":    true,
	"method_declaration":     true,
	"method_definition":      true,
	"class_declaration":      true,
	"class_definition":       true,
	"interface_declaration":  true,
	"type_alias_declaration": true,
	"type_declaration":       true,
}

var constExportRegex = regexp.MustCompile(`\bexport\s+(const|let|var)\b`)

// isDefinitionNode reports whether n should be treated as a named definition,
// either because its kind is in the fixed set above or because it looks like
// a top-level value binding (an exported arrow function, function
// expression, or class expression assigned to a const/let/var).
func isDefinitionNode(n *Node, source []byte) bool {
	if n == nil {
		return false
	}
	if definitionKinds[n.Type] {
		return true
	}
	return isTopLevelValueDef(n, source)
}

func isTopLevelValueDef(n *Node, source []byte) bool {
	if n.Parent == nil {
		return false
	}
	switch n.Parent.Type {
	case "program", "module", "source_file", "class_body":
	default:
		return false
	}
	text := n.GetContent(source)
	if strings.Contains(text, "=>") {
		return true
	}
	if strings.Contains(text, "function ") || strings.Contains(text, "function(") {
		return true
	}
	if strings.Contains(text, "class ") {
		return true
	}
	return constExportRegex.MatchString(text)
}

// classifyNode maps a node kind to its persisted chunk_type: only
// class/interface/type_alias definitions get their own kind; everything
// else, including functions and methods, is Other. The function/method
// distinction is not a chunk_type value — it only ever appears in the
// context crumb produced by labelForNode.
func classifyNode(n *Node) string {
	t := n.Type
	switch {
	case strings.Contains(t, "class"):
		return "Class"
	case strings.Contains(t, "interface"):
		return "Interface"
	case strings.Contains(t, "type_alias"), strings.Contains(t, "type_declaration"), strings.Contains(t, "type_definition"):
		return "TypeAlias"
	default:
		return "Other"
	}
}

// getNodeName looks for the first identifier-shaped child, which across the
// supported grammars is where the definition's name lives. A
// variable_declarator child (the `x = ...` half of a const/let/var
// statement) is recursed into, so a value-bound top-level definition like
// `const greet = (name) => ...` resolves to "greet" rather than "".
func getNodeName(n *Node, source []byte) string {
	for _, c := range n.Children {
		switch c.Type {
		case "identifier", "field_identifier", "type_identifier", "property_identifier":
			return c.GetContent(source)
		case "variable_declarator":
			if name := getNodeName(c, source); name != "" {
				return name
			}
		}
	}
	return ""
}

// labelForNode builds the human-readable context crumb for a definition.
// Unlike classifyNode, this keeps the function/method distinction (and
// covers value-bound top-level definitions), since spec.md's context
// crumbs are where that information is expected to live.
func labelForNode(n *Node, source []byte) string {
	t := n.Type
	name := getNodeName(n, source)

	var kind string
	switch {
	case strings.Contains(t, "class"):
		kind = "Class"
	case strings.Contains(t, "method"):
		kind = "Method"
	case strings.Contains(t, "interface"):
		kind = "Interface"
	case strings.Contains(t, "type_alias"), strings.Contains(t, "type_declaration"), strings.Contains(t, "type_definition"):
		kind = "Type"
	case strings.Contains(t, "function"), isTopLevelValueDef(n, source):
		kind = "Function"
	default:
		if name == "" {
			return ""
		}
		return fmt.Sprintf("Symbol: %s", name)
	}

	if name == "" {
		return fmt.Sprintf("%s: <anonymous %s>", kind, strings.ToLower(kind))
	}
	return fmt.Sprintf("%s: %s", kind, name)
}

// unwrapExport strips an export_statement wrapper so the inner declaration is
// classified and named directly.
func unwrapExport(n *Node) *Node {
	if n.Type != "export_statement" {
		return n
	}
	if len(n.Children) == 1 {
		return n.Children[0]
	}
	for _, c := range n.Children {
		switch c.Type {
		case "export", "default", ";":
			continue
		default:
			return c
		}
	}
	return n
}

// chunkWithTreeSitter walks the parsed tree and emits one chunk per named
// definition plus block chunks for the gaps between top-level definitions
// (and a trailing tail chunk to the end of file). It reports ok=false when
// no definitions were found anywhere in the tree, signaling the caller to
// fall back to simpleChunk so that every file still gets covered.
func chunkWithTreeSitter(source []byte, tree *Tree, language string) (chunks []*Chunk, ok bool) {
	var definitionChunks []*Chunk
	sawDefinition := false
	var crumbs []string

	var visit func(n *Node)
	visit = func(n *Node) {
		for _, child := range n.Children {
			nd := unwrapExport(child)
			if isDefinitionNode(nd, source) {
				sawDefinition = true
				label := labelForNode(nd, source)
				prev, next := crumbContext(crumbs)
				c := buildDefinitionChunk(nd, source, language, label, prev, next)
				definitionChunks = append(definitionChunks, c)
				crumbs = append(crumbs, label)
				visit(nd)
				crumbs = crumbs[:len(crumbs)-1]
			} else {
				visit(nd)
			}
		}
	}
	visit(tree.Root)

	if !sawDefinition {
		return nil, false
	}

	var topSpans []*Node
	for _, child := range tree.Root.Children {
		nd := unwrapExport(child)
		if isDefinitionNode(nd, source) {
			topSpans = append(topSpans, nd)
		}
	}
	blocks := buildBlockChunks(source, language, topSpans)

	all := make([]*Chunk, 0, len(definitionChunks)+len(blocks))
	all = append(all, definitionChunks...)
	all = append(all, blocks...)
	sortChunksByRange(all)
	return all, true
}

func crumbContext(crumbs []string) (prev, next string) {
	if len(crumbs) == 0 {
		return "", ""
	}
	return crumbs[0], crumbs[len(crumbs)-1]
}

func buildDefinitionChunk(n *Node, source []byte, language, label, prev, next string) *Chunk {
	return &Chunk{
		Content:     n.GetContent(source),
		ContentType: ContentTypeCode,
		Language:    language,
		StartLine:   n.StartLine(),
		EndLine:     n.EndLine(),
		ChunkType:   classifyNode(n),
		ContextPrev: prev,
		ContextNext: next,
		Metadata:    map[string]string{"label": label},
	}
}

func buildBlockChunks(source []byte, language string, topSpans []*Node) []*Chunk {
	lines := splitLines(source)
	total := len(lines)
	var blocks []*Chunk
	cursor := 0
	for _, nd := range topSpans {
		s := nd.StartLine()
		if s > cursor {
			if b := makeBlockChunk(lines, language, cursor, s); b != nil {
				blocks = append(blocks, b)
			}
		}
		if e := nd.EndLine(); e > cursor {
			cursor = e
		}
	}
	if cursor < total {
		if b := makeBlockChunk(lines, language, cursor, total); b != nil {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// makeBlockChunk builds a block chunk covering the 0-based, exclusive-end
// line range [startLine, endLine).
func makeBlockChunk(lines []string, language string, startLine, endLine int) *Chunk {
	if startLine < 0 || endLine <= startLine || endLine > len(lines) {
		return nil
	}
	content := strings.Join(lines[startLine:endLine], "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return &Chunk{
		Content:     content,
		ContentType: ContentTypeCode,
		Language:    language,
		StartLine:   startLine,
		EndLine:     endLine,
		ChunkType:   "Block",
	}
}

// simpleChunk is the deterministic fallback used when no grammar is
// available for a file, or when a file parses but contains no recognizable
// definitions: a plain sliding window over lines.
func simpleChunk(source []byte, language string) []*Chunk {
	lines := splitLines(source)
	total := len(lines)
	if total == 0 {
		return nil
	}
	var chunks []*Chunk
	start := 0
	for start < total {
		end := start + MaxLines
		if end > total {
			end = total
		}
		chunks = append(chunks, &Chunk{
			Content:     strings.Join(lines[start:end], "\n"),
			ContentType: ContentTypeCode,
			Language:    language,
			StartLine:   start,
			EndLine:     end,
			ChunkType:   "Block",
		})
		if end >= total {
			break
		}
		start += StrideLines
	}
	return chunks
}

func splitLines(source []byte) []string {
	s := string(source)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func sortChunksByRange(chunks []*Chunk) {
	// simple insertion sort keyed on (StartLine, EndLine); chunk counts per
	// file are small (tens to low hundreds) so O(n^2) is fine and keeps the
	// sort stable without pulling in sort.Slice's extra allocation.
	for i := 1; i < len(chunks); i++ {
		j := i
		for j > 0 && less(chunks[j], chunks[j-1]) {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
			j--
		}
	}
}

func less(a, b *Chunk) bool {
	if a.StartLine != b.StartLine {
		return a.StartLine < b.StartLine
	}
	return a.EndLine < b.EndLine
}
