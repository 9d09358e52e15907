package lspdriver

import (
	"context"
	"encoding/json"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/logger"
)

var reqLog = logger.ComponentLogger("lspdriver")

// DocumentSymbol requests textDocument/documentSymbol for uri. A nested
// DocumentSymbol[] response is rejected rather than flattened: nested
// symbols are not yet implemented.
func (c *Client) DocumentSymbol(ctx context.Context, uri string) ([]FlatDocumentSymbol, error) {
	params := map[string]any{
		"textDocument": map[string]any{"uri": uri},
	}
	var raw json.RawMessage
	if err := c.call(ctx, "textDocument/documentSymbol", params, &raw); err != nil {
		return nil, err
	}
	return decodeSymbolResponse(raw)
}

// WorkspaceSymbol requests workspace/symbol with the given query and an
// optional quirks-specific search_scope extension (e.g. rust-analyzer's
// workspace_and_dependencies scope).
func (c *Client) WorkspaceSymbol(ctx context.Context, query string, searchScope string) ([]FlatDocumentSymbol, error) {
	params := map[string]any{"query": query}
	if searchScope != "" {
		params["search_scope"] = searchScope
	}
	var raw json.RawMessage
	if err := c.call(ctx, "workspace/symbol", params, &raw); err != nil {
		return nil, err
	}
	return decodeSymbolResponse(raw)
}

// decodeSymbolResponse decodes the common SymbolInformation[] | DocumentSymbol[]
// | null shape shared by textDocument/documentSymbol and workspace/symbol
// responses. A null response becomes an empty result set; a nested
// DocumentSymbol[] response (entries carry a "children" field) is rejected.
func decodeSymbolResponse(raw json.RawMessage) ([]FlatDocumentSymbol, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var probe []struct {
		Children json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errors.Wrap(err, "decode symbol response")
	}
	for _, p := range probe {
		if len(p.Children) > 0 {
			return nil, errors.New("nested symbols are not yet implemented")
		}
	}

	var flat []FlatDocumentSymbol
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, errors.Wrap(err, "decode flat symbol response")
	}
	return flat, nil
}

// Hover requests textDocument/hover at the given 0-based position. A nil
// result (no hover) is reported by returning (nil, nil).
func (c *Client) Hover(ctx context.Context, uri string, line, character uint32) (*HoverResult, error) {
	params := hoverParams(uri, line, character)
	var result *HoverResult
	if err := c.call(ctx, "textDocument/hover", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Declaration requests textDocument/declaration.
func (c *Client) Declaration(ctx context.Context, uri string, line, character uint32) ([]WireLocation, error) {
	return c.locationRequest(ctx, "textDocument/declaration", uri, line, character)
}

// Definition requests textDocument/definition.
func (c *Client) Definition(ctx context.Context, uri string, line, character uint32) ([]WireLocation, error) {
	return c.locationRequest(ctx, "textDocument/definition", uri, line, character)
}

// Implementation requests textDocument/implementation.
func (c *Client) Implementation(ctx context.Context, uri string, line, character uint32) ([]WireLocation, error) {
	return c.locationRequest(ctx, "textDocument/implementation", uri, line, character)
}

// TypeDefinition requests textDocument/typeDefinition.
func (c *Client) TypeDefinition(ctx context.Context, uri string, line, character uint32) ([]WireLocation, error) {
	return c.locationRequest(ctx, "textDocument/typeDefinition", uri, line, character)
}

// References requests textDocument/references with includeDeclaration=false.
func (c *Client) References(ctx context.Context, uri string, line, character uint32) ([]WireLocation, error) {
	params := hoverParams(uri, line, character)
	params["context"] = map[string]any{"includeDeclaration": false}
	var raw []WireLocation
	if err := c.call(ctx, "textDocument/references", params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SemanticTokensFull requests textDocument/semanticTokens/full. A null
// response (no tokens for this document) decodes to a nil result.
func (c *Client) SemanticTokensFull(ctx context.Context, uri string) (*SemanticTokensResult, error) {
	params := map[string]any{
		"textDocument": map[string]any{"uri": uri},
	}
	var result *SemanticTokensResult
	if err := c.call(ctx, "textDocument/semanticTokens/full", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) locationRequest(ctx context.Context, method, uri string, line, character uint32) ([]WireLocation, error) {
	params := hoverParams(uri, line, character)
	var raw json.RawMessage
	if err := c.call(ctx, method, params, &raw); err != nil {
		return nil, err
	}
	return decodeLocationResponse(raw)
}

// decodeLocationResponse handles the legal shapes of a goto-style LSP
// response: Location | Location[] | LocationLink[] | null.
func decodeLocationResponse(raw json.RawMessage) ([]WireLocation, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var scalar WireLocation
	if err := json.Unmarshal(raw, &scalar); err == nil && scalar.URI != "" {
		return []WireLocation{scalar}, nil
	}

	var locations []WireLocation
	if err := json.Unmarshal(raw, &locations); err == nil && allHaveURI(locations) {
		return locations, nil
	}

	var links []struct {
		TargetURI   string    `json:"targetUri"`
		TargetRange WireRange `json:"targetRange"`
	}
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, errors.Wrap(err, "decode location response")
	}
	out := make([]WireLocation, 0, len(links))
	for _, l := range links {
		out = append(out, WireLocation{URI: l.TargetURI, Range: l.TargetRange})
	}
	return out, nil
}

// allHaveURI reports whether every location in locs carries a non-empty
// URI. A LocationLink[] response unmarshals into []WireLocation without
// error (its "uri" field is simply absent), so this guards against
// silently accepting links as locations instead of falling through to the
// targetUri/targetRange decode.
func allHaveURI(locs []WireLocation) bool {
	for _, l := range locs {
		if l.URI == "" {
			return false
		}
	}
	return true
}

func hoverParams(uri string, line, character uint32) map[string]any {
	return map[string]any{
		"textDocument": map[string]any{"uri": uri},
		"position":     map[string]any{"line": line, "character": character},
	}
}

// call wraps conn.Call with uniform error context naming the LSP method.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	v := logger.Verbosity()
	if logger.ShouldOutput(v, logger.OutputLSPRequests) {
		reqLog.Debugw("LSP request", logger.FieldMethod, method)
	}
	if logger.ShouldShowLSPBody(v) {
		if b, err := json.Marshal(params); err == nil {
			reqLog.Debugw("LSP request body", logger.FieldMethod, method, "params", string(b))
		}
	}

	err := c.conn.Call(ctx, method, params, result)

	if logger.ShouldOutput(v, logger.OutputLSPStatus) {
		reqLog.Debugw("LSP response", logger.FieldMethod, method, "error", err)
	}
	if err == nil && logger.ShouldShowLSPBody(v) {
		if b, marshalErr := json.Marshal(result); marshalErr == nil {
			reqLog.Debugw("LSP response body", logger.FieldMethod, method, "result", string(b))
		}
	}

	if err != nil {
		return errors.Wrapf(err, "LSP request %s", method)
	}
	return nil
}
