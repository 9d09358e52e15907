// Package progressguard tracks the language server's $/progress notification
// stream and exposes a readiness gate that tool handlers must pass through
// before issuing LSP requests. The state machine — a Ready{init,progress}
// flag pair, an Expected-Init Set, and Work-Token Set double-start/
// end-without-start invariants — only reports ready once every expected
// startup token has completed and no work token is currently in flight.
package progressguard

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sasha-s/go-deadlock"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/internal/lspdriver"
	"github.com/csc-dev/commonsensecoder/internal/quirks"
	"github.com/csc-dev/commonsensecoder/logger"
)

var log = logger.ComponentLogger("progressguard")

// Guard tracks readiness derived from a language server's $/progress stream.
type Guard struct {
	mu deadlock.Mutex

	ready   ready
	running map[string]struct{}
	initSet map[string]struct{}

	readyCond *sync.Cond

	events   []string
	eventMu  sync.Mutex
	eventSeq int
	eventCond *sync.Cond
}

type ready struct {
	init     bool
	progress bool
}

func (r ready) ok() bool { return r.init && r.progress }

// New constructs a Guard seeded with the quirks' expected init progress
// tokens. Readiness starts {init:false, progress:true} — no work is in
// flight until the server actually begins some.
func New(q quirks.Quirks) *Guard {
	g := &Guard{
		ready:   ready{init: false, progress: true},
		running: make(map[string]struct{}),
		initSet: make(map[string]struct{}),
	}
	for _, tok := range q.ExpectedInitProgressTokens() {
		g.initSet[tok] = struct{}{}
	}
	if len(g.initSet) == 0 {
		g.ready.init = true
	}
	g.readyCond = sync.NewCond(&g.mu)
	g.eventCond = sync.NewCond(&g.eventMu)
	return g
}

// Handle is installed as the LSP Driver's ProgressHandler. It enforces the
// Work-Token Set invariants (no double Begin, no End without Begin) and
// publishes a readiness transition plus a formatted event line.
func (g *Guard) Handle(p lspdriver.ProgressParams) error {
	token := tokenString(p.Token)

	var evt string
	g.mu.Lock()
	switch p.Value.Kind {
	case "begin":
		if _, dup := g.running[token]; dup {
			g.mu.Unlock()
			return errors.Newf("progress double start: %s", token)
		}
		g.running[token] = struct{}{}
		if _, isInit := g.initSet[token]; isInit {
			delete(g.initSet, token)
		}
		evt = formatEvent(p.Token, "start", p.Value.Title, p.Value.Message, p.Value.Percentage)
	case "report":
		evt = formatEvent(p.Token, "progress", "", p.Value.Message, p.Value.Percentage)
	case "end":
		if _, ok := g.running[token]; !ok {
			g.mu.Unlock()
			return errors.Newf("progress end without start: %s", token)
		}
		delete(g.running, token)
		evt = formatEvent(p.Token, "end", "", p.Value.Message, nil)
	default:
		g.mu.Unlock()
		return errors.Newf("unknown work-done progress kind %q", p.Value.Kind)
	}

	newReady := ready{init: len(g.initSet) == 0, progress: len(g.running) == 0}
	changed := newReady != g.ready
	flagChanged := changed && newReady.ok() != g.ready.ok()
	g.ready = newReady
	g.mu.Unlock()

	if changed {
		g.readyCond.Broadcast()
		if flagChanged {
			log.Infow("ready changed", logger.FieldProgressTok, token, "ready", newReady.ok())
		} else {
			log.Debugw("ready changed", logger.FieldProgressTok, token, "ready", newReady.ok())
		}
	}

	g.publishEvent(evt)
	return nil
}

// Wait blocks until the guard is ready or ctx is cancelled. A watcher
// goroutine rebroadcasts on cancellation so the condition-variable wait
// below never leaks past ctx's lifetime.
func (g *Guard) Wait(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			g.mu.Lock()
			g.readyCond.Broadcast()
			g.mu.Unlock()
		case <-stop:
		}
	}()

	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.ready.ok() && ctx.Err() == nil {
		g.readyCond.Wait()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Ready reports the current readiness without blocking.
func (g *Guard) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready.ok()
}

// RunningTokens returns a sorted snapshot of in-flight work tokens, for
// diagnostics.
func (g *Guard) RunningTokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.running))
	for t := range g.running {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// publishEvent appends to the event log and wakes any Events subscribers.
func (g *Guard) publishEvent(evt string) {
	g.eventMu.Lock()
	g.events = append(g.events, evt)
	g.eventSeq++
	g.eventMu.Unlock()
	g.eventCond.Broadcast()
}

// Events streams formatted progress event lines to fn until ctx is done.
// fn is invoked with every event published from the moment Events is called
// onward; events published before the call are not replayed.
func (g *Guard) Events(ctx context.Context, fn func(string)) {
	g.eventMu.Lock()
	seen := g.eventSeq
	g.eventMu.Unlock()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			g.eventMu.Lock()
			g.eventCond.Broadcast()
			g.eventMu.Unlock()
		case <-stop:
		}
	}()
	defer close(stop)

	for {
		g.eventMu.Lock()
		for g.eventSeq == seen && ctx.Err() == nil {
			g.eventCond.Wait()
		}
		if ctx.Err() != nil {
			g.eventMu.Unlock()
			return
		}
		newEvents := append([]string(nil), g.events[seen:g.eventSeq]...)
		seen = g.eventSeq
		g.eventMu.Unlock()

		for _, e := range newEvents {
			fn(e)
		}
	}
}

// tokenString renders a $/progress token for set membership and event text.
// Only string tokens participate in the expected-init set; numeric tokens
// are still tracked as in-flight work but never match init reconciliation.
func tokenString(token any) string {
	switch t := token.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}

// formatEvent renders a progress event as "<phase> [token] [title] [message] [pct%]".
// The token segment is only included for string tokens; a numeric token
// contributes no segment at all.
func formatEvent(rawToken any, phase, title, message string, percentage *int) string {
	parts := []string{phase}
	if token, ok := rawToken.(string); ok && token != "" {
		parts = append(parts, token)
	}
	if title != "" {
		parts = append(parts, title)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if percentage != nil {
		parts = append(parts, strconv.Itoa(*percentage)+"%")
	}
	return strings.Join(parts, " ")
}
