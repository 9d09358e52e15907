// Command csc-bridge drives a language-server subprocess and exposes
// find_symbol/symbol_info over MCP. Wiring style (root cobra command,
// PersistentPreRunE logger init, --verbose count flag) follows the
// project's usual cobra root-command layout; startup spawns the language
// server and runs the initialize handshake, then serves MCP tools (each
// tool call first waits for the server to report readiness) until the
// transport closes or a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/internal/config"
	"github.com/csc-dev/commonsensecoder/internal/iointercept"
	"github.com/csc-dev/commonsensecoder/internal/lspdriver"
	"github.com/csc-dev/commonsensecoder/internal/progressguard"
	"github.com/csc-dev/commonsensecoder/internal/quirks"
	"github.com/csc-dev/commonsensecoder/internal/tasksup"
	"github.com/csc-dev/commonsensecoder/internal/toolserver"
	"github.com/csc-dev/commonsensecoder/logger"
)

const shutdownTimeout = 10 * time.Second

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "csc-bridge",
	Short: "Code intelligence bridge exposing find_symbol/symbol_info over MCP",
	Long: `csc-bridge drives a language-server subprocess over the Language
Server Protocol and re-exposes two of its capabilities — symbol search and
symbol inspection — as Model Context Protocol tools for an LLM agent.`,
	RunE: runBridge,
}

func init() {
	config.BindFlags(rootCmd, v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(v, envFilePath())
	if err != nil {
		return err
	}

	if err := logger.Initialize(cfg.JSONLogs, cfg.Verbosity); err != nil {
		return errors.Wrap(err, "initialize logger")
	}
	log := logger.ComponentLogger("main")

	if cfg.InterceptDir != "" {
		if err := os.MkdirAll(cfg.InterceptDir, 0o755); err != nil {
			return errors.Wrapf(err, "create intercept directory %s", cfg.InterceptDir)
		}
	}

	registry := quirks.NewRegistry()
	q, ok := registry.Resolve(cfg.ProgrammingLanguage)
	if !ok {
		return errors.Newf("unknown language %q: registered languages are %v", cfg.ProgrammingLanguage, registry.Names())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := tasksup.New(ctx)

	driver, err := spawnDriver(ctx, cfg, q)
	if err != nil {
		return errors.Wrap(err, "spawn language server")
	}

	guard := progressguard.New(q)
	driver.SetProgressHandler(func(p lspdriver.ProgressParams) {
		if err := guard.Handle(p); err != nil {
			log.Errorw("progress protocol violation", logger.FieldError, err)
		}
	})

	if err := driver.Initialize(ctx, q); err != nil {
		return errors.Wrap(err, "LSP initialize handshake")
	}

	tools := toolserver.New(cfg.Workspace, driver, guard, q)

	sup.Spawn("lsp-wait", func(taskCtx context.Context) error {
		waitErr := driver.Wait()
		if taskCtx.Err() != nil {
			// Shutdown was already requested elsewhere; the process exiting
			// in response is expected, not a surprise early return.
			return taskCtx.Err()
		}
		return waitErr
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- tools.Serve() }()

	select {
	case err := <-serveErr:
		log.Infow("MCP transport closed", logger.FieldError, err)
	case err := <-supervisorFailure(sup):
		log.Errorw("background task failed", logger.FieldError, err)
	case <-ctx.Done():
		log.Infow("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := driver.Shutdown(shutdownCtx); err != nil {
		firstErr = err
		log.Warnw("LSP shutdown failed", logger.FieldError, err)
	}
	// The "lsp-wait" supervised task already owns the single call to
	// driver.Wait() (cmd.Wait() must not be called concurrently from two
	// goroutines); sup.Shutdown below joins it and surfaces its error.
	if err := sup.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}

	if ctx.Err() != nil && errors.Is(firstErr, context.Canceled) {
		// A deliberate shutdown signal unwound cleanly; don't report the
		// resulting "context canceled" from the joined tasks as a failure.
		return nil
	}
	return firstErr
}

func spawnDriver(ctx context.Context, cfg *config.Config, q quirks.Quirks) (*lspdriver.Client, error) {
	if cfg.InterceptDir == "" {
		return lspdriver.Spawn(ctx, cfg.Workspace, q, nil, nil, nil, os.Stderr)
	}

	wrapStdin := func(w io.WriteCloser) io.WriteCloser {
		fork, err := iointercept.NewWriteFork(w, cfg.InterceptDir, "lsp.stdin.txt")
		if err != nil {
			logger.ComponentLogger("main").Warnw("failed to tee lsp stdin", logger.FieldError, err)
			return w
		}
		return fork
	}
	wrapStdout := func(r io.ReadCloser) io.ReadCloser {
		fork, err := iointercept.NewReadFork(r, cfg.InterceptDir, "lsp.stdout.txt")
		if err != nil {
			logger.ComponentLogger("main").Warnw("failed to tee lsp stdout", logger.FieldError, err)
			return r
		}
		return fork
	}
	wrapStderr := func(r io.ReadCloser) io.ReadCloser {
		fork, err := iointercept.NewReadFork(r, cfg.InterceptDir, "lsp.stderr.txt")
		if err != nil {
			logger.ComponentLogger("main").Warnw("failed to tee lsp stderr", logger.FieldError, err)
			return r
		}
		return fork
	}

	return lspdriver.Spawn(ctx, cfg.Workspace, q, wrapStdin, wrapStdout, wrapStderr, os.Stderr)
}

func supervisorFailure(sup *tasksup.Supervisor) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- sup.Run() }()
	return ch
}

func envFilePath() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	path := filepath.Join(wd, ".env")
	if _, statErr := os.Stat(path); statErr != nil {
		return ""
	}
	return path
}
