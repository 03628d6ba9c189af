package embed

import (
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"
)

// This file implements the deterministic, hash-based vector generation
// shared by the dense and ColBERT encoders in hybrid.go. It exists because
// real model inference is external to this daemon (see the Embedder
// interface in types.go): these functions are the "model" the daemon
// actually carries, standing in for whatever embedding model a deployment
// configures via Config.DenseModel/ColbertModel.

// programmingStopWords contains common programming language keywords to filter out.
var programmingStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// denseVector produces a dims-length unit vector from text by hashing
// tokens and character n-grams into fixed buckets. Text that yields no
// tokens or n-grams (e.g. blank text) maps to the zero vector.
func denseVector(text string, dims int) []float32 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, dims)
	}

	vector := make([]float32, dims)

	tokens := filterStopWords(tokenize(trimmed))
	for _, token := range tokens {
		vector[hashToIndex(token, dims)] += tokenWeight
	}

	normalized := normalizeForNgrams(trimmed)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, dims)] += ngramWeight
	}

	return normalizeVector(vector)
}

// tokenVectors produces one hash-based vector per token, used to build the
// ColBERT-style multi-vector representation: each row is a per-token
// embedding rather than one pooled vector for the whole text.
func tokenVectors(text string, dims, maxTokens int) [][]float32 {
	tokens := filterStopWords(tokenize(text))
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	if len(tokens) == 0 {
		return [][]float32{denseVector(text, dims)}
	}

	out := make([][]float32, len(tokens))
	for i, token := range tokens {
		v := make([]float32, dims)
		v[hashToIndex(token, dims)] += 1.0
		for _, ngram := range extractNgrams(token, 2) {
			v[hashToIndex(ngram, dims)] += 0.5
		}
		out[i] = normalizeVector(v)
	}
	return out
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	var result []string
	if strings.Contains(token, "_") {
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func filterStopWords(tokens []string) []string {
	var filtered []string
	for _, t := range tokens {
		if !programmingStopWords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}
