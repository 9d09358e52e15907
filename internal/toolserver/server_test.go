package toolserver

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csc-dev/commonsensecoder/internal/lspdriver"
	"github.com/csc-dev/commonsensecoder/internal/progressguard"
	"github.com/csc-dev/commonsensecoder/internal/quirks"
)

// fakeLSP answers whichever LSP methods a test registers a canned response
// for; initialize is always answered with a static-registration semantic
// tokens capability so Client.Initialize succeeds.
type fakeLSP struct {
	mu        sync.Mutex
	responses map[string]any
}

func (s *fakeLSP) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if req.Method == "initialize" {
		return map[string]any{
			"capabilities": map[string]any{
				"positionEncoding": "utf-8",
				"semanticTokensProvider": map[string]any{
					"full":   map[string]any{"delta": true},
					"legend": map[string]any{"tokenTypes": []string{"function"}, "tokenModifiers": []string{}},
				},
			},
		}, nil
	}
	s.mu.Lock()
	resp, ok := s.responses[req.Method]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return resp, nil
}

type pipeEnd struct {
	io.Reader
	io.Writer
	io.Closer
}

// zeroInitQuirks wraps a Quirks with no expected startup progress tokens, so
// a Guard built from it is ready immediately without any $/progress traffic.
type zeroInitQuirks struct {
	quirks.Quirks
}

func (zeroInitQuirks) ExpectedInitProgressTokens() []string { return nil }

// newTestServer wires a Server to an in-memory fake language server and a
// real workspace directory on disk, so file-existence checks and
// textDocument/documentSymbol-style URIs behave like the real thing.
func newTestServer(t *testing.T, responses map[string]any) (*Server, string) {
	t.Helper()

	workspace := t.TempDir()

	clientReadR, serverWriteW := io.Pipe()
	serverReadR, clientWriteW := io.Pipe()

	srv := &fakeLSP{responses: responses}
	serverRWC := pipeEnd{Reader: serverReadR, Writer: serverWriteW, Closer: serverWriteW}
	jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(serverRWC, jsonrpc2.VSCodeObjectCodec{}), jsonrpc2.HandlerWithError(srv.handle))

	q := zeroInitQuirks{quirks.RustAnalyzer()}
	driver, err := lspdriver.New(context.Background(), workspace, q, clientWriteW, clientReadR, nil, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, driver.Initialize(ctx, q))

	guard := progressguard.New(q)
	return New(workspace, driver, guard, q), workspace
}

func callToolRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, content []mcp.Content, i int) string {
	t.Helper()
	tc, ok := content[i].(mcp.TextContent)
	require.True(t, ok, "content[%d] is not TextContent: %T", i, content[i])
	return tc.Text
}

func symbolInformation(name string, kind int, uri string, line, char uint32) map[string]any {
	return map[string]any{
		"name": name,
		"kind": kind,
		"location": map[string]any{
			"uri": uri,
			"range": map[string]any{
				"start": map[string]any{"line": line, "character": char},
				"end":   map[string]any{"line": line, "character": char},
			},
		},
	}
}

func TestFindSymbolWorkspaceExactMiss(t *testing.T) {
	s, _ := newTestServer(t, map[string]any{
		"workspace/symbol": []any{symbolInformation("Foo", 12, "file:///irrelevant/foo.go", 0, 0)},
	})

	result, err := s.handleFindSymbol(context.Background(), callToolRequest(map[string]any{"query": "NotFound"}))
	require.NoError(t, err)
	assert.Empty(t, result.Content)
}

func TestFindSymbolWorkspaceExactHit(t *testing.T) {
	s, workspace := newTestServer(t, map[string]any{
		"workspace/symbol": []any{symbolInformation("Foo", 12, "file://"+filepath.Join(workspace, "foo.go"), 4, 1)},
	})

	result, err := s.handleFindSymbol(context.Background(), callToolRequest(map[string]any{"query": "Foo"}))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	var got symbolResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result.Content, 0)), &got))
	assert.Equal(t, "Foo", got.Name)
	assert.Equal(t, "foo.go", got.File)
	assert.Equal(t, uint32(5), got.Line)
	assert.Equal(t, uint32(2), got.Character)
}

func TestFindSymbolAutoExpandOnEmptyWithOmittedFlag(t *testing.T) {
	s, _ := newTestServer(t, map[string]any{
		"workspace/symbol": []any{symbolInformation("Bar", 12, "file:///outside/workspace/bar.go", 0, 0)},
	})

	// workspace_and_dependencies is never mentioned: an exact-scope miss
	// (the symbol lives outside the workspace) must auto-retry with
	// dependencies included rather than reporting no results.
	result, err := s.handleFindSymbol(context.Background(), callToolRequest(map[string]any{"query": "Bar"}))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	var got symbolResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result.Content, 0)), &got))
	assert.Equal(t, "/outside/workspace/bar.go", got.File)
}

func TestFindSymbolExplicitGlobalFuzzy(t *testing.T) {
	s, _ := newTestServer(t, map[string]any{
		"workspace/symbol": []any{symbolInformation("bar_lib_fn", 12, "file:///outside/workspace/bar.go", 0, 0)},
	})

	result, err := s.handleFindSymbol(context.Background(), callToolRequest(map[string]any{
		"query":                      "barfn",
		"fuzzy":                      true,
		"workspace_and_dependencies": true,
	}))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	var got symbolResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result.Content, 0)), &got))
	assert.Equal(t, "bar_lib_fn", got.Name)
}

func TestFindSymbolFileNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)

	result, err := s.handleFindSymbol(context.Background(), callToolRequest(map[string]any{"file": "missing.go"}))
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	assert.Contains(t, textOf(t, result.Content, 0), "file not found")
}

func TestFindSymbolMissingQueryAndFileIsInvalidParams(t *testing.T) {
	s, _ := newTestServer(t, nil)

	result, err := s.handleFindSymbol(context.Background(), callToolRequest(map[string]any{}))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "invalid_params")
}

// semanticTokenData builds a delta-encoded single-line token stream with one
// token per (column, length) pair on line 0, all of type index 0.
func semanticTokenData(spans [][2]uint32) []uint32 {
	var data []uint32
	var prevStart uint32
	for i, span := range spans {
		deltaStart := span[0]
		if i > 0 {
			deltaStart = span[0] - prevStart
		}
		data = append(data, 0, deltaStart, span[1], 0, 0)
		prevStart = span[0]
	}
	return data
}

func TestSymbolInfoAggregatesMultipleCandidates(t *testing.T) {
	// Two tokens named "print" on a single line: "print print".
	content := "print print\n"
	tokens := semanticTokenData([][2]uint32{{0, 5}, {6, 5}})

	hover := map[string]any{"contents": "docs for print"}
	loc := map[string]any{
		"uri":   "file:///irrelevant/print.go",
		"range": map[string]any{"start": map[string]any{"line": 0, "character": 0}, "end": map[string]any{"line": 0, "character": 0}},
	}

	s, workspace := newTestServer(t, map[string]any{
		"textDocument/semanticTokens/full": map[string]any{"data": tokens},
		"textDocument/hover":               hover,
		"textDocument/declaration":         loc,
		"textDocument/definition":          loc,
		"textDocument/implementation":      loc,
		"textDocument/typeDefinition":      loc,
		"textDocument/references":          []any{loc},
	})

	require.NoError(t, os.WriteFile(filepath.Join(workspace, "print.go"), []byte(content), 0o644))

	result, err := s.handleSymbolInfo(context.Background(), callToolRequest(map[string]any{
		"file": "print.go",
		"name": "print",
	}))
	require.NoError(t, err)
	assert.Len(t, result.Content, 2)
}

func TestSymbolInfoNoMatchReturnsNotFoundText(t *testing.T) {
	content := "print\n"
	tokens := semanticTokenData([][2]uint32{{0, 5}})

	s, workspace := newTestServer(t, map[string]any{
		"textDocument/semanticTokens/full": map[string]any{"data": tokens},
	})
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "print.go"), []byte(content), 0o644))

	result, err := s.handleSymbolInfo(context.Background(), callToolRequest(map[string]any{
		"file": "print.go",
		"name": "doesNotExist",
	}))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Contains(t, textOf(t, result.Content, 0), "no symbol named")
}
