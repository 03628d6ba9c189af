package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/smgrep/internal/daemon"
)

func sampleResponse() *daemon.SearchResponse {
	return &daemon.SearchResponse{
		Status: daemon.StatusReady,
		Results: []daemon.SearchResult{
			{Path: "a.go", Content: "func A() {}", Score: 0.91, StartLine: 10, ChunkType: "function"},
			{Path: "b.go", Content: "func B() {}", Score: 0.80, StartLine: 3, ChunkType: "function"},
		},
	}
}

func TestPrintResultsEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newSearchCmd()
	cmd.SetOut(buf)

	require.NoError(t, printResults(cmd, &daemon.SearchResponse{}, searchOptions{}))
	assert.Contains(t, buf.String(), "No results found.")
}

func TestPrintResultsCompactListsPathsOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newSearchCmd()
	cmd.SetOut(buf)

	require.NoError(t, printResults(cmd, sampleResponse(), searchOptions{compact: true}))
	assert.Equal(t, "a.go\nb.go\n", buf.String())
}

func TestPrintResultsScoresIncludesScoreValue(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newSearchCmd()
	cmd.SetOut(buf)

	require.NoError(t, printResults(cmd, sampleResponse(), searchOptions{scores: true}))
	assert.Contains(t, buf.String(), "0.910")
}

func TestPrintResultsContentIncludesChunkBody(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newSearchCmd()
	cmd.SetOut(buf)

	require.NoError(t, printResults(cmd, sampleResponse(), searchOptions{content: true}))
	assert.Contains(t, buf.String(), "func A() {}")
}

func TestPrintResultsShowsIndexingProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newSearchCmd()
	cmd.SetOut(buf)

	progress := uint8(37)
	resp := &daemon.SearchResponse{Status: daemon.StatusIndexing, Progress: &progress}
	require.NoError(t, printResults(cmd, resp, searchOptions{}))
	assert.Contains(t, buf.String(), "37%")
}

func TestIsOutputTerminalFalseForBuffer(t *testing.T) {
	assert.False(t, isOutputTerminal(&bytes.Buffer{}))
}
