package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - User-facing output only: results, errors with hints
//	1 (-v)      - + readiness progress, startup info, tool invocations
//	2 (-vv)     - + search matches, timing, config loaded, LSP requests
//	3 (-vvv)    - + LSP server stderr, JSON-RPC call tracing, internal flow
//	4 (-vvvv)   - + full request/response bodies, semantic token dumps

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Tool results returned to the MCP client
	OutputErrors                           // Errors with hints and resolution steps
	OutputUserStatus                       // Final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress      // $/progress Begin/Report/End events
	OutputStartup       // Startup banners, config summary
	OutputToolStatus    // Tool call started/completed
	OutputOperationInfo // High-level operation summaries

	// Level 2 (-vv) - Detailed
	OutputSearchMatches // What matched a find_symbol query and why
	OutputTiming        // Operation timing (e.g., "symbol_info took 42ms")
	OutputConfig        // Config values loaded/applied
	OutputLSPRequests   // Outgoing LSP method + params summary
	OutputLSPStatus     // LSP response status (ok/error)

	// Level 3 (-vvv) - Debug
	OutputLSPStderr    // Language server stderr lines
	OutputJSONRPCCall  // JSON-RPC call tracing (method, id, timing)
	OutputInternalFlow // Internal operation flow (function entry/exit)
	OutputTeeWrites    // IO interception tee writes

	// Level 4 (-vvvv) - Full dump
	OutputLSPBody        // Full LSP request/response bodies
	OutputSemanticTokens // Decoded semantic token stream
	OutputDataDump       // Full data structure contents
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	// Level 0 - Always shown
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	// Level 1 - Informational
	OutputProgress:      VerbosityInfo,
	OutputStartup:       VerbosityInfo,
	OutputToolStatus:    VerbosityInfo,
	OutputOperationInfo: VerbosityInfo,

	// Level 2 - Detailed
	OutputSearchMatches: VerbosityDebug,
	OutputTiming:        VerbosityDebug,
	OutputConfig:        VerbosityDebug,
	OutputLSPRequests:   VerbosityDebug,
	OutputLSPStatus:     VerbosityDebug,

	// Level 3 - Debug
	OutputLSPStderr:    VerbosityTrace,
	OutputJSONRPCCall:  VerbosityTrace,
	OutputInternalFlow: VerbosityTrace,
	OutputTeeWrites:    VerbosityTrace,

	// Level 4 - Full dump
	OutputLSPBody:        VerbosityAll,
	OutputSemanticTokens: VerbosityAll,
	OutputDataDump:       VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories
var categoryNames = map[OutputCategory]string{
	OutputResults:        "results",
	OutputErrors:         "errors",
	OutputUserStatus:     "status",
	OutputProgress:       "progress",
	OutputStartup:        "startup",
	OutputToolStatus:     "tool-status",
	OutputOperationInfo:  "operation-info",
	OutputSearchMatches:  "search-matches",
	OutputTiming:         "timing",
	OutputConfig:         "config",
	OutputLSPRequests:    "lsp-requests",
	OutputLSPStatus:      "lsp-status",
	OutputLSPStderr:      "lsp-stderr",
	OutputJSONRPCCall:    "jsonrpc-call",
	OutputInternalFlow:   "internal-flow",
	OutputTeeWrites:      "tee-writes",
	OutputLSPBody:        "lsp-body",
	OutputSemanticTokens: "semantic-tokens",
	OutputDataDump:       "data-dump",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// EnabledCategories returns all output categories enabled at the given verbosity
func EnabledCategories(verbosity int) []OutputCategory {
	var enabled []OutputCategory
	for cat, minLevel := range categoryLevels {
		if verbosity >= minLevel {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}

// VerbosityDescription returns a description of what's shown at each level
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, readiness progress, tool status"
	case VerbosityDebug:
		return "above + search matches, timing, config, LSP requests"
	case VerbosityTrace:
		return "above + LSP server stderr, JSON-RPC tracing"
	case VerbosityAll:
		return "above + full bodies, decoded semantic tokens"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}

// Search output helpers

// ShouldShowSearchMatches returns true if find_symbol match details should be displayed
func ShouldShowSearchMatches(verbosity int) bool {
	return ShouldOutput(verbosity, OutputSearchMatches)
}

// ShouldShowSemanticTokens returns true if the decoded token stream should be dumped
func ShouldShowSemanticTokens(verbosity int) bool {
	return ShouldOutput(verbosity, OutputSemanticTokens)
}

// LSP process output helpers

// ShouldShowLSPStderr returns true if language server stderr should be forwarded
func ShouldShowLSPStderr(verbosity int) bool {
	return ShouldOutput(verbosity, OutputLSPStderr)
}

// ShouldShowLSPBody returns true if full LSP request/response bodies should be logged
func ShouldShowLSPBody(verbosity int) bool {
	return ShouldOutput(verbosity, OutputLSPBody)
}

// Timing helpers

// SlowThresholdMS is the threshold in milliseconds above which timing is always shown
const SlowThresholdMS = 100

// ShouldShowTiming returns true if timing info should be displayed.
// Shows if: verbosity >= 2 (-vv) OR operation exceeded slow threshold.
func ShouldShowTiming(verbosity int, durationMS int64) bool {
	if durationMS >= SlowThresholdMS {
		return true // Always show slow operations
	}
	return ShouldOutput(verbosity, OutputTiming)
}

// ShouldShowTimingAlways returns true if timing should always be shown (slow operation)
func ShouldShowTimingAlways(durationMS int64) bool {
	return durationMS >= SlowThresholdMS
}
