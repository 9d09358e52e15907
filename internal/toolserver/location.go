package toolserver

import (
	"path/filepath"
	"strconv"
	"strings"
)

// mcpLocation renders an LSP location as a workspace-relative path when it
// falls inside the workspace, or — only when the caller opted into
// workspace_and_dependencies — as an absolute path outside it. A false
// second return means "drop this location" (outside the workspace, and the
// caller did not ask for globals).
type mcpLocation struct {
	File      string `json:"file"`
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

func (l mcpLocation) String() string {
	return l.File + ":" + strconv.Itoa(int(l.Line)) + ":" + strconv.Itoa(int(l.Character))
}

// newMcpLocation resolves a file:// uri + 0-based start position into an
// mcpLocation, or (zero, false) when the location should be dropped.
func newMcpLocation(workspace, uri string, startLine, startChar uint32, workspaceAndDependencies bool) (mcpLocation, bool) {
	path := uriToPath(uri)

	var file string
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(workspace, path)
		inside := err == nil && !strings.HasPrefix(rel, "..")
		switch {
		case inside:
			file = rel
		case workspaceAndDependencies:
			file = path
		default:
			return mcpLocation{}, false
		}
	} else {
		file = path
	}

	return mcpLocation{
		File:      file,
		Line:      startLine + 1,
		Character: startChar + 1,
	}, true
}

func pathToURI(workspace, path string) string {
	if strings.HasPrefix(path, "/") {
		return "file://" + path
	}
	return "file://" + filepath.Join(workspace, path)
}

func uriToPath(uri string) string {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		return uri[len(prefix):]
	}
	return uri
}
