package lspdriver

import (
	"context"
	"encoding/json"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/internal/quirks"
)

// semanticTokensCapability captures the static-registration shape of
// textDocument/semanticTokens server capabilities. The id and
// documentSelector fields only appear on a SemanticTokensRegistrationOptions
// payload, which a server uses to register dynamically via
// client/registerCapability instead of declaring support statically in the
// initialize response; their presence here means the provider isn't usable
// the way this bridge expects and must be rejected.
type semanticTokensCapability struct {
	ID               *string         `json:"id"`
	DocumentSelector json.RawMessage `json:"documentSelector"`
	Full             struct {
		Delta bool `json:"delta"`
	} `json:"full"`
	Legend struct {
		TokenTypes     []string `json:"tokenTypes"`
		TokenModifiers []string `json:"tokenModifiers"`
	} `json:"legend"`
}

func (s *semanticTokensCapability) dynamicallyRegistered() bool {
	return s.ID != nil || s.DocumentSelector != nil
}

// initializeResult captures only the parts of the server's initialize
// response this bridge validates and extracts a legend from; everything
// else is accepted but ignored, decoding LSP responses into narrowly
// scoped local structs rather than the full protocol schema.
type initializeResult struct {
	Capabilities struct {
		PositionEncoding       string                     `json:"positionEncoding"`
		SemanticTokensProvider *semanticTokensCapability `json:"semanticTokensProvider"`
	} `json:"capabilities"`
}

// Initialize performs the LSP initialize/initialized handshake declaring
// this client's capabilities, validates the negotiated server
// capabilities, and populates the token legend.
func (c *Client) Initialize(ctx context.Context, q quirks.Quirks) error {
	params := map[string]any{
		"processId": nil,
		"rootUri":   "file://" + c.workspaceRoot,
		"workspaceFolders": []map[string]any{
			{"uri": "file://" + c.workspaceRoot, "name": "workspace"},
		},
		"capabilities": map[string]any{
			"general": map[string]any{
				"positionEncodings": []string{"utf-8"},
			},
			"textDocument": map[string]any{
				"hover": map[string]any{
					"contentFormat": []string{"markdown", "plaintext"},
				},
				"semanticTokens": map[string]any{
					"requests": map[string]any{
						"full": map[string]any{"delta": true},
					},
					"tokenTypes":     []string{},
					"tokenModifiers": []string{},
					"formats":        []string{"relative"},
					"multilineTokenSupport":   false,
					"overlappingTokenSupport": false,
				},
			},
			"workspace": map[string]any{
				"symbol": map[string]any{
					"symbolKind": map[string]any{
						"valueSet": workspaceSymbolKindValues(),
					},
				},
			},
			"window": map[string]any{
				"workDoneProgress": true,
			},
		},
		"initializationOptions": q.InitializationOptions(),
	}

	var raw json.RawMessage
	if err := c.conn.Call(ctx, "initialize", params, &raw); err != nil {
		return errors.Wrapf(err, "initialize failed for workspace %s", c.workspaceRoot)
	}

	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return errors.Wrap(err, "decode initialize result")
	}

	if result.Capabilities.PositionEncoding != "utf-8" {
		reported := result.Capabilities.PositionEncoding
		if reported == "" {
			// An absent positionEncoding defaults to utf-16 per LSP; that
			// default is exactly what this bridge cannot accept.
			reported = "utf-16 (default, not reported)"
		}
		return errors.Newf("server negotiated position encoding %q, require utf-8", reported)
	}
	if result.Capabilities.SemanticTokensProvider == nil {
		return errors.New("server does not advertise semantic tokens support")
	}
	if result.Capabilities.SemanticTokensProvider.dynamicallyRegistered() {
		return errors.New("server registers semantic tokens dynamically, require static initialize-time capability")
	}
	if !result.Capabilities.SemanticTokensProvider.Full.Delta {
		return errors.New("server does not advertise semantic tokens full+delta support")
	}

	c.legend = TokenLegend{
		Types:     result.Capabilities.SemanticTokensProvider.Legend.TokenTypes,
		Modifiers: result.Capabilities.SemanticTokensProvider.Legend.TokenModifiers,
	}

	if err := c.conn.Notify(ctx, "initialized", map[string]any{}); err != nil {
		return errors.Wrap(err, "send initialized notification")
	}

	return nil
}

// Shutdown performs the LSP shutdown/exit sequence.
func (c *Client) Shutdown(ctx context.Context) error {
	if err := c.conn.Call(ctx, "shutdown", nil, nil); err != nil {
		return errors.Wrap(err, "shutdown RPC failed")
	}
	if err := c.conn.Notify(ctx, "exit", nil); err != nil {
		return errors.Wrap(err, "exit notification failed")
	}
	return nil
}

func workspaceSymbolKindValues() []int {
	// Matches internal/lspkind.WorkspaceSymbolKinds, declared as raw ints
	// here so that lspdriver does not import lspkind.
	return []int{14, 10, 22, 8, 12, 11, 6, 2, 3, 19, 23, 26, 13}
}
