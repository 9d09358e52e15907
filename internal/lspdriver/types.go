package lspdriver

import "encoding/json"

func unmarshalInto(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Wire DTOs for LSP shapes not already covered by tliron/glsp's
// protocol_3_16 package (semantic tokens, work-done progress, plain
// workspace symbol information), decoded into local structs rather than a
// third-party protocol package for every shape.

// ProgressParams mirrors the LSP $/progress notification payload.
type ProgressParams struct {
	Token any             `json:"token"`
	Value WorkDoneProgress `json:"value"`
}

// WorkDoneProgress is the tagged union carried by ProgressParams.Value.
type WorkDoneProgress struct {
	Kind       string `json:"kind"` // "begin" | "report" | "end"
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Percentage *int   `json:"percentage,omitempty"`
	Cancelable bool   `json:"cancellable,omitempty"`
}

// SemanticTokensResult is the response to textDocument/semanticTokens/full.
// ResultID is decoded but otherwise unused: this client never requests
// semanticTokens/full/delta, so a compliant server has no reason to send one
// and Data is always a complete token stream.
type SemanticTokensResult struct {
	ResultID string   `json:"resultId,omitempty"`
	Data     []uint32 `json:"data"`
}

// SymbolInformation is the flat (non-DocumentSymbol) workspace/symbol shape.
type SymbolInformation struct {
	Name          string       `json:"name"`
	Kind          int          `json:"kind"`
	Deprecated    bool         `json:"deprecated,omitempty"`
	Location      WireLocation `json:"location"`
	ContainerName string       `json:"containerName,omitempty"`
}

// FlatDocumentSymbol is textDocument/documentSymbol's SymbolInformation-shaped
// response (as opposed to the nested DocumentSymbol tree, which is rejected).
type FlatDocumentSymbol = SymbolInformation

// WireLocation mirrors LSP's Location shape without pulling in glsp's
// pointer-heavy Position/Range when only plain decoding is needed.
type WireLocation struct {
	URI   string    `json:"uri"`
	Range WireRange `json:"range"`
}

type WireRange struct {
	Start WirePosition `json:"start"`
	End   WirePosition `json:"end"`
}

type WirePosition struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// HoverResult mirrors textDocument/hover's response.
type HoverResult struct {
	Contents HoverContents `json:"contents"`
}

// HoverContents handles all three legal shapes of MarkupContent | MarkedString
// | MarkedString[] by capturing the raw decoded value.
//
// Scalar: a bare string.
// Array: a list of strings and/or {language, value} objects; a single
// {language, value} object is stored as a one-element Array.
// Markup: {kind, value}.
type HoverContents struct {
	Scalar string
	Array  []any
	Markup *struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
}

func (h *HoverContents) UnmarshalJSON(data []byte) error {
	var s string
	if err := unmarshalInto(data, &s); err == nil {
		h.Scalar = s
		return nil
	}

	var arr []any
	if err := unmarshalInto(data, &arr); err == nil {
		h.Array = arr
		return nil
	}

	var markup struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := unmarshalInto(data, &markup); err == nil && markup.Kind != "" {
		h.Markup = &markup
		return nil
	}

	var langString map[string]any
	if err := unmarshalInto(data, &langString); err == nil {
		if _, ok := langString["language"]; ok {
			h.Array = []any{langString}
			return nil
		}
	}

	return nil
}
