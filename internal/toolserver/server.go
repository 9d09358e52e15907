// Package toolserver exposes find_symbol and symbol_info as MCP tools,
// fanning calls out to the LSP Driver once the Progress Guard reports
// readiness. find_symbol resolves to a document- or workspace-symbol
// search with exact/fuzzy filtering and auto-expanding scope; symbol_info
// aggregates hover, declaration, definition, implementation,
// typeDefinition, and references for every semantic-token candidate
// matching a name.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/internal/lspdriver"
	"github.com/csc-dev/commonsensecoder/internal/lspkind"
	"github.com/csc-dev/commonsensecoder/internal/progressguard"
	"github.com/csc-dev/commonsensecoder/internal/quirks"
	"github.com/csc-dev/commonsensecoder/internal/semtok"
	"github.com/csc-dev/commonsensecoder/logger"
)

// maxConcurrentCandidates bounds how many symbol_info candidates fan their
// six follow-up LSP requests out at once; most language servers serialize
// requests internally anyway, so unbounded fan-out just queues without
// speeding anything up.
const maxConcurrentCandidates = 4

var log = logger.ComponentLogger("toolserver")

// Server wires find_symbol/symbol_info onto a language-server connection.
type Server struct {
	mcp       *server.MCPServer
	driver    *lspdriver.Client
	guard     *progressguard.Guard
	quirks    quirks.Quirks
	workspace string
}

// New constructs a Server; call RegisterTools then Serve.
func New(workspace string, driver *lspdriver.Client, guard *progressguard.Guard, q quirks.Quirks) *Server {
	s := &Server{
		driver:    driver,
		guard:     guard,
		quirks:    q,
		workspace: workspace,
	}
	s.mcp = server.NewMCPServer(
		"common-sense-coder",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithInstructions("Use find_symbol first to discover file/line/character, then symbol_info for details."),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	findSymbolTool := mcp.NewTool("find_symbol",
		mcp.WithDescription("find symbol (e.g. a struct, enum, method, ...) in the code base"),
		mcp.WithString("query", mcp.Description("the symbol that you are looking for")),
		mcp.WithString("file", mcp.Description("path to the file, otherwise search the entire workspace")),
		mcp.WithBoolean("fuzzy", mcp.Description("search fuzzy")),
		mcp.WithBoolean("workspace_and_dependencies", mcp.Description("search workspace and dependencies")),
	)
	s.mcp.AddTool(findSymbolTool, s.handleFindSymbol)

	symbolInfoTool := mcp.NewTool("symbol_info",
		mcp.WithDescription("get information for a given symbol"),
		mcp.WithString("file", mcp.Required(), mcp.Description("path to the file")),
		mcp.WithString("name", mcp.Required(), mcp.Description("symbol name")),
		mcp.WithNumber("line", mcp.Description("1-based line number within the file")),
		mcp.WithNumber("character", mcp.Description("1-based character index within the line")),
		mcp.WithBoolean("workspace_and_dependencies", mcp.Description("resolve locations outside the workspace as absolute paths")),
	)
	s.mcp.AddTool(symbolInfoTool, s.handleSymbolInfo)
}

// Serve runs the MCP server over stdio until the transport closes.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

// triState distinguishes an absent boolean argument from an explicit one,
// since find_symbol's auto-expand rule only fires when the caller never
// mentioned workspace_and_dependencies at all.
func triState(args map[string]any, key string) (value, present bool) {
	raw, ok := args[key]
	if !ok {
		return false, false
	}
	b, _ := raw.(bool)
	return b, true
}

func (s *Server) handleFindSymbol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.guard.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for language server readiness")
	}

	args := request.Params.Arguments
	log.Debugw("find_symbol", logger.FieldTool, "find_symbol", logger.FieldSymbol, args["query"])
	query := strings.TrimSpace(stringArg(args, "query"))
	file := strings.TrimSpace(stringArg(args, "file"))
	fuzzy, _ := triState(args, "fuzzy")
	wad, wadSet := triState(args, "workspace_and_dependencies")

	if file == "" && query == "" {
		// A request with neither a file to list nor a query to search for
		// is malformed, not merely unsuccessful: that distinction means
		// this returns through the protocol-level error path (a non-nil
		// handler error, which the MCP server reports as invalid_params)
		// rather than a soft tool-result error like the file-not-found
		// case below, which is a legitimate miss that still deserves a
		// normal, inspectable tool result.
		return nil, errors.New("invalid_params: query is required when file is omitted")
	}

	var raw []lspdriver.FlatDocumentSymbol
	if file != "" {
		absPath := resolvePath(s.workspace, file)
		if _, statErr := os.Stat(absPath); statErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("file not found: %s", file)), nil
		}
		symbols, err := s.driver.DocumentSymbol(ctx, pathToURI(s.workspace, file))
		if err != nil {
			return nil, err
		}
		raw = symbols
	} else {
		scope := "Workspace"
		if wadSet && wad {
			scope = "WorkspaceAndDependencies"
		}
		symbols, err := s.driver.WorkspaceSymbol(ctx, query, scope)
		if err != nil {
			return nil, err
		}
		raw = symbols
	}

	mode := searchModeFor(fuzzy)
	results := s.filterAndRender(raw, query, mode, wadSet && wad)

	if len(results) == 0 && !wadSet {
		results = s.filterAndRender(raw, query, mode, true)
	}

	content := make([]mcp.Content, 0, len(results))
	for _, r := range results {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, errors.Wrap(err, "marshal symbol result")
		}
		content = append(content, mcp.TextContent{Type: "text", Text: string(b)})
	}
	return &mcp.CallToolResult{Content: content}, nil
}

// symbolResult is the find_symbol wire shape.
type symbolResult struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Deprecated bool   `json:"deprecated"`
	File       string `json:"file"`
	Line       uint32 `json:"line"`
	Character  uint32 `json:"character"`
}

func (s *Server) filterAndRender(raw []lspdriver.FlatDocumentSymbol, query string, mode searchMode, workspaceAndDependencies bool) []symbolResult {
	showMatches := logger.ShouldShowSearchMatches(logger.Verbosity())
	var out []symbolResult
	for _, sym := range raw {
		if query != "" && !mode.check(query, sym.Name) {
			continue
		}
		loc, ok := newMcpLocation(s.workspace, sym.Location.URI, sym.Location.Range.Start.Line, sym.Location.Range.Start.Character, workspaceAndDependencies)
		if !ok {
			if showMatches {
				log.Debugw("candidate dropped: outside workspace", logger.FieldSymbol, sym.Name)
			}
			continue
		}
		if showMatches {
			log.Debugw("candidate matched", logger.FieldSymbol, sym.Name, "mode", mode, "file", loc.File)
		}
		out = append(out, symbolResult{
			Name:       sym.Name,
			Kind:       kindName(sym.Kind),
			Deprecated: sym.Deprecated,
			File:       loc.File,
			Line:       loc.Line,
			Character:  loc.Character,
		})
	}
	return out
}

func (s *Server) handleSymbolInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.guard.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for language server readiness")
	}

	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.Params.Arguments
	log.Debugw("symbol_info", logger.FieldTool, "symbol_info", logger.FieldFile, file, logger.FieldSymbol, name)
	wad, _ := triState(args, "workspace_and_dependencies")

	var linePtr, charPtr *uint32
	if l, ok := numberArg(args, "line"); ok {
		lv := uint32(l)
		linePtr = &lv
	}
	if c, ok := numberArg(args, "character"); ok {
		cv := uint32(c)
		charPtr = &cv
	}

	absPath := resolvePath(s.workspace, file)
	fileBytes, readErr := os.ReadFile(absPath)
	if readErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("file not found: %s", file)), nil
	}

	uri := pathToURI(s.workspace, file)
	tokenResp, err := s.driver.SemanticTokensFull(ctx, uri)
	if err != nil {
		return nil, err
	}
	if tokenResp == nil {
		return mcp.NewToolResultText("no semantic tokens available for this file"), nil
	}

	legend := semtok.FromDriverLegend(s.driver.Legend())
	doc, err := legend.Decode(string(fileBytes), tokenResp.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode semantic tokens")
	}

	candidates := doc.Query(name, linePtr, charPtr)
	if logger.ShouldShowSemanticTokens(logger.Verbosity()) {
		log.Debugw("semantic token query", logger.FieldFile, file, logger.FieldSymbol, name, "candidates", len(candidates))
	}

	type rendered struct {
		text string
		ok   bool
	}
	results := make([]rendered, len(candidates))
	sem := semaphore.NewWeighted(maxConcurrentCandidates)
	group, groupCtx := errgroup.WithContext(ctx)
	for i, tok := range candidates {
		i, tok := i, tok
		if err := sem.Acquire(groupCtx, 1); err != nil {
			return nil, errors.Wrap(err, "acquire candidate render slot")
		}
		group.Go(func() error {
			defer sem.Release(1)
			text, ok, err := s.renderCandidate(groupCtx, uri, tok, wad)
			if err != nil {
				return err
			}
			results[i] = rendered{text: text, ok: ok}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	content := make([]mcp.Content, 0, len(candidates))
	for _, r := range results {
		if !r.ok {
			continue
		}
		content = append(content, mcp.TextContent{Type: "text", Text: r.text})
	}
	if len(content) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no symbol named %q found", name)), nil
	}
	return &mcp.CallToolResult{Content: content}, nil
}

// renderCandidate issues the six LSP requests (hover, then five location
// queries) for one token and
// splices the results into the symbol_info section format. ok=false means
// the candidate had no hover and must be skipped entirely.
func (s *Server) renderCandidate(ctx context.Context, uri string, tok semtok.Token, workspaceAndDependencies bool) (string, bool, error) {
	line0 := tok.Line - 1
	char0 := tok.Character - 1

	hover, err := s.driver.Hover(ctx, uri, line0, char0)
	if err != nil {
		return "", false, err
	}
	if hover == nil {
		return "", false, nil
	}

	decl, err := s.driver.Declaration(ctx, uri, line0, char0)
	if err != nil {
		return "", false, err
	}
	def, err := s.driver.Definition(ctx, uri, line0, char0)
	if err != nil {
		return "", false, err
	}
	impl, err := s.driver.Implementation(ctx, uri, line0, char0)
	if err != nil {
		return "", false, err
	}
	typeDef, err := s.driver.TypeDefinition(ctx, uri, line0, char0)
	if err != nil {
		return "", false, err
	}
	refs, err := s.driver.References(ctx, uri, line0, char0)
	if err != nil {
		return "", false, err
	}

	mods := tok.Modifiers()
	modText := "none"
	if len(mods) > 0 {
		modText = strings.Join(mods, ", ")
	}
	tokenLoc, _ := newMcpLocation(s.workspace, uri, line0, char0, true)
	tokenLocJSON, err := json.Marshal(tokenLoc)
	if err != nil {
		return "", false, errors.Wrap(err, "marshal token location")
	}

	sections := []string{
		fmt.Sprintf("Token:\n- location: %s\n- type: %s\n- modifiers: %s", tokenLocJSON, tok.Type, modText),
		renderHover(*hover),
		renderLocationSection("Declarations", s.workspace, decl, workspaceAndDependencies),
		renderLocationSection("Definitions", s.workspace, def, workspaceAndDependencies),
		renderLocationSection("Implementations", s.workspace, impl, workspaceAndDependencies),
		renderLocationSection("Type Definitions", s.workspace, typeDef, workspaceAndDependencies),
		renderLocationSection("References", s.workspace, refs, workspaceAndDependencies),
	}
	return strings.Join(sections, "\n\n---\n\n"), true, nil
}

func renderHover(h lspdriver.HoverResult) string {
	c := h.Contents
	switch {
	case c.Markup != nil:
		return strings.TrimSpace(c.Markup.Value)
	case c.Array != nil:
		parts := make([]string, 0, len(c.Array))
		for _, item := range c.Array {
			parts = append(parts, formatMarkedString(item))
		}
		return strings.Join(parts, "\n")
	default:
		return strings.TrimSpace(c.Scalar)
	}
}

func formatMarkedString(item any) string {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		lang, _ := v["language"].(string)
		value, _ := v["value"].(string)
		if lang != "" {
			return fmt.Sprintf("```%s\n%s\n```\n", lang, value)
		}
		return strings.TrimSpace(value)
	default:
		return ""
	}
}

func renderLocationSection(title, workspace string, locs []lspdriver.WireLocation, workspaceAndDependencies bool) string {
	var lines []string
	for _, loc := range locs {
		mloc, ok := newMcpLocation(workspace, loc.URI, loc.Range.Start.Line, loc.Range.Start.Character, workspaceAndDependencies)
		if !ok {
			continue
		}
		locJSON, err := json.Marshal(mloc)
		if err != nil {
			continue
		}
		lines = append(lines, "- "+string(locJSON))
	}
	if len(lines) == 0 {
		return title + ":\nNone"
	}
	return title + ":\n" + strings.Join(lines, "\n")
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func numberArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func resolvePath(workspace, file string) string {
	if strings.HasPrefix(file, "/") {
		return file
	}
	return workspace + "/" + file
}

func kindName(kind int) string {
	return lspkind.KindString(protocol.SymbolKind(kind))
}
