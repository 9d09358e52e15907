// Package quirks describes per-language capability sets injected into the
// bridge core: which language server binary to spawn, what initialization
// options it expects, which progress tokens its warmup emits, and how to
// score semantic token modifiers.
package quirks

// Quirks is the capability set a language plug-in must provide.
type Quirks interface {
	// Name identifies the quirks set, e.g. "rust" or "go".
	Name() string

	// ServerCommand is the executable (and args) to spawn for the language server.
	ServerCommand() []string

	// InitializationOptions is passed verbatim as the LSP initialize request's
	// initializationOptions. May be nil.
	InitializationOptions() any

	// ExpectedInitProgressTokens lists the work-token names that must all
	// fire Begin before init_done is declared.
	ExpectedInitProgressTokens() []string

	// ModifierScore returns the score contribution of a single semantic
	// token modifier name. Unknown modifiers score 0.
	ModifierScore(modifier string) int
}

type staticQuirks struct {
	name               string
	serverCommand      []string
	initOptions        any
	initProgressTokens []string
	modifierScores     map[string]int
}

func (q *staticQuirks) Name() string                        { return q.name }
func (q *staticQuirks) ServerCommand() []string              { return q.serverCommand }
func (q *staticQuirks) InitializationOptions() any           { return q.initOptions }
func (q *staticQuirks) ExpectedInitProgressTokens() []string { return q.initProgressTokens }
func (q *staticQuirks) ModifierScore(modifier string) int    { return q.modifierScores[modifier] }

// RustAnalyzer configures rust-analyzer as the language server: its binary
// name, hover/workspace-symbol initialization options, and the
// cargo-check/indexing progress tokens it emits while warming up.
func RustAnalyzer() Quirks {
	return &staticQuirks{
		name:          "rust",
		serverCommand: []string{"rust-analyzer"},
		initOptions: map[string]any{
			"files": map[string]any{
				"watcher": "server",
			},
			"hover": map[string]any{
				"dropGlue":     map[string]any{"enable": false},
				"memoryLayout": map[string]any{"enable": false},
				"show": map[string]any{
					"enumVariants":    100,
					"fields":          100,
					"traitAssocItems": 100,
				},
			},
			"workspace": map[string]any{
				"symbol": map[string]any{
					"search": map[string]any{
						"scope": "workspace_and_dependencies",
					},
				},
			},
		},
		initProgressTokens: []string{"rustAnalyzer/cachePriming", "rustAnalyzer/Indexing"},
		modifierScores: map[string]int{
			"declaration": 5,
			"definition":  5,
			"public":      2,
			"deprecated":  -10,
		},
	}
}

// Gopls configures gopls as the language server, demonstrating the
// plug-in contract against a second real language server beyond the
// originally-supported Rust case.
func Gopls() Quirks {
	return &staticQuirks{
		name:          "go",
		serverCommand: []string{"gopls", "serve"},
		initOptions: map[string]any{
			"usePlaceholders": true,
			"staticcheck":     true,
		},
		initProgressTokens: []string{"gopls/loadPackages", "gopls/diagnostics"},
		modifierScores: map[string]int{
			"declaration": 5,
			"definition":  5,
			"deprecated":  -10,
		},
	}
}

// Registry resolves a language name to its Quirks.
type Registry struct {
	byName map[string]Quirks
}

// NewRegistry builds the default registry with all known languages registered.
func NewRegistry() *Registry {
	r := &Registry{byName: map[string]Quirks{}}
	r.Register(RustAnalyzer())
	r.Register(Gopls())
	return r
}

// Register adds or replaces a quirks set under its own Name().
func (r *Registry) Register(q Quirks) {
	r.byName[q.Name()] = q
}

// Names lists the registered language names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// Resolve looks up quirks by language name.
func (r *Registry) Resolve(name string) (Quirks, bool) {
	q, ok := r.byName[name]
	return q, ok
}
