// Package lspdriver spawns a language-server subprocess, performs the LSP
// initialize/initialized handshake, validates the negotiated capabilities,
// and exposes a thin request surface used by the tool server. It drives
// whatever server a quirks.Quirks names over a real JSON-RPC 2.0 codec
// rather than hand-rolled framing.
package lspdriver

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/internal/quirks"
	"github.com/csc-dev/commonsensecoder/logger"
)

// TokenLegend is the immutable type/modifier vocabulary extracted from the
// server's semantic tokens capabilities during initialize.
type TokenLegend struct {
	Types     []string
	Modifiers []string
}

// ProgressHandler is invoked for every $/progress notification the server
// sends. Installed by the Progress Guard before readiness tracking begins.
type ProgressHandler func(ProgressParams)

// Client drives one language-server subprocess over stdio.
type Client struct {
	cmd  *exec.Cmd
	conn *jsonrpc2.Conn

	workspaceRoot string
	legend        TokenLegend

	onProgress ProgressHandler
}

// New spawns the language server named by q and wires its stdio through a
// JSON-RPC 2.0 connection. stdin/stdout may be tee'd by the caller before
// being passed in; stderr is copied to stderrSink in raw chunks, and only
// while the current verbosity enables language-server stderr output.
func New(ctx context.Context, workspaceRoot string, q quirks.Quirks, stdin io.WriteCloser, stdout io.ReadCloser, stderr io.ReadCloser, stderrSink io.Writer) (*Client, error) {
	cmdArgs := q.ServerCommand()
	if len(cmdArgs) == 0 {
		return nil, errors.Newf("quirks %q declared an empty server command", q.Name())
	}

	c := &Client{workspaceRoot: workspaceRoot}

	rwc := struct {
		io.Reader
		io.Writer
		io.Closer
	}{Reader: stdout, Writer: stdin, Closer: stdin}

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	c.conn = jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(c.handle))

	go forwardStderr(stderr, stderrSink)

	return c, nil
}

// Spawn launches the language server as a subprocess and returns a Client
// wired to its stdio pipes. stdin/stdout passed to New may already be
// tee-wrapped by the caller via internal/iointercept.
func Spawn(ctx context.Context, workspaceRoot string, q quirks.Quirks, wrapStdin func(io.WriteCloser) io.WriteCloser, wrapStdout func(io.ReadCloser) io.ReadCloser, wrapStderr func(io.ReadCloser) io.ReadCloser, stderrSink io.Writer) (*Client, error) {
	args := q.ServerCommand()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "create language server stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "create language server stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "create language server stderr pipe")
	}

	if wrapStdin != nil {
		stdin = wrapStdin(stdin)
	}
	var stdoutR io.ReadCloser = stdout
	if wrapStdout != nil {
		stdoutR = wrapStdout(stdout)
	}
	var stderrR io.ReadCloser = stderr
	if wrapStderr != nil {
		stderrR = wrapStderr(stderr)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start language server %q", args[0])
	}

	c, err := New(ctx, workspaceRoot, q, stdin, stdoutR, stderrR, os.Stderr)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	c.cmd = cmd
	return c, nil
}

// forwardStderr copies the language server's stderr to sink, but only when
// the current verbosity asks for it: rust-analyzer and gopls are both
// chatty on stderr, and at default verbosity that noise would bury the
// bridge's own output.
func forwardStderr(r io.Reader, sink io.Writer) {
	if r == nil {
		return
	}
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 && sink != nil && logger.ShouldShowLSPStderr(logger.Verbosity()) {
			sink.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// handle dispatches server->client notifications and requests. The bridge
// only cares about $/progress; everything else is acknowledged or ignored,
// matching a language server's expectation that unhandled client requests
// still get a response of some kind.
func (c *Client) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "$/progress":
		if req.Params == nil {
			return nil, nil
		}
		var p ProgressParams
		if err := json.Unmarshal(*req.Params, &p); err != nil {
			return nil, errors.Wrap(err, "decode $/progress notification")
		}
		if c.onProgress != nil {
			c.onProgress(p)
		}
		return nil, nil
	case "window/workDoneProgress/create":
		return nil, nil
	case "client/registerCapability", "client/unregisterCapability":
		return nil, nil
	case "workspace/configuration":
		return []any{}, nil
	default:
		logger.ComponentLogger("lspdriver").Debugw("unhandled server message", logger.FieldMethod, req.Method)
		return nil, nil
	}
}

// SetProgressHandler installs the callback invoked for every $/progress
// notification. Must be called before Initialize to avoid racing startup
// progress events.
func (c *Client) SetProgressHandler(h ProgressHandler) {
	c.onProgress = h
}

// Legend returns the token legend extracted during Initialize.
func (c *Client) Legend() TokenLegend {
	return c.legend
}

// Wait blocks until the subprocess exits, returning a non-nil error iff it
// exited with a non-zero status.
func (c *Client) Wait() error {
	if c.cmd == nil {
		return nil
	}
	if err := c.cmd.Wait(); err != nil {
		return errors.Wrap(err, "language server process exited with error")
	}
	return nil
}

// Kill forcibly terminates the subprocess.
func (c *Client) Kill() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}
