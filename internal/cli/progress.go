package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chaostheorist/chaos/internal/store"
)

// ─── Loading indicator ──────────────────────────────────────────────────────
// Mirrors the console's loading flags on the terminal:
//   [...] analyzing financial-market-stability-v1
//   [done] analyzing financial-market-stability-v1 (2 seconds)

type loadingWatcher struct {
	mu      sync.Mutex
	w       io.Writer
	started map[string]time.Time
	now     func() time.Time
}

// watchLoading prints loading transitions of st to w until the returned
// function is called.
func watchLoading(st *store.Store, w io.Writer) (stop func()) {
	lw := &loadingWatcher{w: w, started: map[string]time.Time{}, now: time.Now}
	return st.Subscribe(lw.observe)
}

func (lw *loadingWatcher) observe(_ store.State, t store.Transition) {
	switch tr := t.(type) {
	case store.SetLoading:
		lw.flip("loading "+string(tr.Key), tr.Value)
	case store.SetAnalysisLoading:
		lw.flip("analyzing "+tr.SystemID, tr.Loading)
	case store.SetChatThinking:
		lw.flip("analyst is thinking", tr.Thinking)
	}
}

func (lw *loadingWatcher) flip(label string, on bool) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	clearLine(lw.w)
	if on {
		lw.started[label] = lw.now()
		fmt.Fprintf(lw.w, "[...] %s", label)
		return
	}
	start, ok := lw.started[label]
	if !ok {
		return
	}
	delete(lw.started, label)
	if elapsed := lw.now().Sub(start); elapsed >= time.Second {
		took := strings.TrimSpace(humanize.RelTime(start, start.Add(elapsed), "", ""))
		fmt.Fprintf(lw.w, "[done] %s (%s)\n", label, took)
	}
}

func clearLine(w io.Writer) {
	fmt.Fprint(w, "\r\033[K")
}
