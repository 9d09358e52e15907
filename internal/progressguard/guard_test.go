package progressguard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csc-dev/commonsensecoder/internal/lspdriver"
	"github.com/csc-dev/commonsensecoder/internal/quirks"
)

func beginMsg(token string) lspdriver.ProgressParams {
	return lspdriver.ProgressParams{Token: token, Value: lspdriver.WorkDoneProgress{Kind: "begin", Title: "indexing"}}
}

func endMsg(token string) lspdriver.ProgressParams {
	return lspdriver.ProgressParams{Token: token, Value: lspdriver.WorkDoneProgress{Kind: "end"}}
}

func TestNotReadyUntilInitTokensSeen(t *testing.T) {
	g := New(quirks.RustAnalyzer())
	require.False(t, g.Ready())

	require.NoError(t, g.Handle(beginMsg("rustAnalyzer/cachePriming")))
	require.False(t, g.Ready())
	require.NoError(t, g.Handle(endMsg("rustAnalyzer/cachePriming")))
	require.False(t, g.Ready())

	require.NoError(t, g.Handle(beginMsg("rustAnalyzer/Indexing")))
	require.NoError(t, g.Handle(endMsg("rustAnalyzer/Indexing")))
	assert.True(t, g.Ready())
}

func TestDoubleBeginIsFatal(t *testing.T) {
	g := New(quirks.RustAnalyzer())
	require.NoError(t, g.Handle(beginMsg("x")))
	err := g.Handle(beginMsg("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "double start")
}

func TestEndWithoutBeginIsFatal(t *testing.T) {
	g := New(quirks.RustAnalyzer())
	err := g.Handle(endMsg("never-started"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end without start")
}

func TestWaitUnblocksWhenReady(t *testing.T) {
	g := New(quirks.RustAnalyzer())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	waited := make(chan error, 1)
	go func() { waited <- g.Wait(ctx) }()

	require.NoError(t, g.Handle(beginMsg("rustAnalyzer/cachePriming")))
	require.NoError(t, g.Handle(endMsg("rustAnalyzer/cachePriming")))
	require.NoError(t, g.Handle(beginMsg("rustAnalyzer/Indexing")))
	require.NoError(t, g.Handle(endMsg("rustAnalyzer/Indexing")))

	select {
	case err := <-waited:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after readiness")
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	g := New(quirks.RustAnalyzer())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Wait(ctx)
	require.Error(t, err)
}

func TestFormatEventOmitsSegmentForNumericToken(t *testing.T) {
	pct := 50
	line := formatEvent(float64(7), "progress", "", "indexing", &pct)
	assert.Equal(t, "progress indexing 50%", line)
}

func TestFormatEventIncludesSegmentForStringToken(t *testing.T) {
	line := formatEvent("rustAnalyzer/Indexing", "start", "Indexing", "", nil)
	assert.Equal(t, "start rustAnalyzer/Indexing Indexing", line)
}
