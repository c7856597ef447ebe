package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/store"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakeGateway struct {
	mu          sync.Mutex
	systems     []domain.ChaoticSystemDefinition
	listErr     error
	panicOnList bool
	points      map[string][]domain.LeveragePoint
	analysisErr error
	gate        chan struct{}
	calls       atomic.Int32
	runs        []domain.StartRequest
}

func cloneSystem(s domain.ChaoticSystemDefinition) domain.ChaoticSystemDefinition {
	s.Parameters = append([]domain.SystemParameter(nil), s.Parameters...)
	return s
}

func (g *fakeGateway) ListSystems(ctx context.Context) ([]domain.ChaoticSystemDefinition, error) {
	if g.panicOnList {
		panic("list exploded")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]domain.ChaoticSystemDefinition, len(g.systems))
	for i, s := range g.systems {
		out[i] = cloneSystem(s)
	}
	return out, nil
}

func (g *fakeGateway) GetSystem(ctx context.Context, id string) (domain.ChaoticSystemDefinition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.systems {
		if s.ID == id {
			return cloneSystem(s), nil
		}
	}
	return domain.ChaoticSystemDefinition{}, domain.NotFound("system", id)
}

func (g *fakeGateway) IdentifyLeveragePoints(ctx context.Context, systemID string) ([]domain.LeveragePoint, error) {
	g.calls.Add(1)
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.analysisErr != nil {
		return nil, g.analysisErr
	}
	return g.points[systemID], nil
}

func (g *fakeGateway) UpdateParameter(ctx context.Context, systemID, parameterID string, value domain.Value) (domain.SystemParameter, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.systems {
		if g.systems[i].ID != systemID {
			continue
		}
		sys := cloneSystem(g.systems[i])
		p, ok := sys.Parameter(parameterID)
		if !ok {
			return domain.SystemParameter{}, domain.NotFound("parameter", parameterID)
		}
		v, err := p.ValidateValue(value)
		if err != nil {
			return domain.SystemParameter{}, err
		}
		p.CurrentValue = v
		sys.ContentHash = domain.ComputeContentHash(sys)
		g.systems[i] = sys
		return *p, nil
	}
	return domain.SystemParameter{}, domain.NotFound("system", systemID)
}

func (g *fakeGateway) StartSimulation(ctx context.Context, req domain.StartRequest) (domain.SimulationRun, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs = append(g.runs, req)
	return domain.SimulationRun{
		ID:          fmt.Sprintf("sim-%d", len(g.runs)),
		SystemID:    req.SystemID,
		InitiatedBy: req.InitiatedBy,
		Status:      domain.RunRunning,
		Events:      []domain.RunEvent{{Type: domain.EventStart}},
	}, nil
}

func (g *fakeGateway) GetSimulation(ctx context.Context, id string) (domain.SimulationRun, error) {
	return domain.SimulationRun{}, domain.NotFound("simulation", id)
}

type fakeChat struct {
	err     error
	gate    chan struct{}
	entered chan struct{}
	seen    [][]domain.ChatMessage
}

func (f *fakeChat) Complete(ctx context.Context, history []domain.ChatMessage, text, instruction string) (string, error) {
	f.seen = append(f.seen, history)
	if f.entered != nil {
		close(f.entered)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", f.err
	}
	return "re: " + text, nil
}

type recorder struct {
	mu       sync.Mutex
	errs     []error
	notified [][2]string
}

func (r *recorder) Report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) Notify(lp, sys string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, [2]string{lp, sys})
}

type memPrefs struct{ m map[string]string }

func (p *memPrefs) LoadPreferences(ctx context.Context) (map[string]string, error) {
	return p.m, nil
}

func (p *memPrefs) SavePreference(ctx context.Context, key, value string) error {
	p.m[key] = value
	return nil
}

func ptr(f float64) *float64 { return &f }

func rangedSystem(id string) domain.ChaoticSystemDefinition {
	s := domain.ChaoticSystemDefinition{
		ID:   id,
		Name: "System " + id,
		Parameters: []domain.SystemParameter{{
			ID:           "p1",
			DataType:     domain.DataNumber,
			CurrentValue: domain.Number(10),
			MinValue:     ptr(0),
			MaxValue:     ptr(100),
		}},
	}
	s.ContentHash = domain.ComputeContentHash(s)
	return s
}

func newConsole(t *testing.T, gw *fakeGateway, chat *fakeChat, allow ...string) (*Console, *recorder) {
	t.Helper()
	rec := &recorder{}
	var n atomic.Int32
	c := New(store.New(), gw, chat, Config{
		Access:      allow,
		CurrentUser: "sysadmin-001",
		Instruction: "be concise",
	},
		WithErrorReporter(rec),
		WithInterventionReporter(rec),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
	)
	return c, rec
}

// ─── Catalog ────────────────────────────────────────────────────────────────

func TestFilterAccessible_SubsetInOrder(t *testing.T) {
	catalog := []domain.ChaoticSystemDefinition{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	got := FilterAccessible(catalog, domain.AccessPolicy{"d", "b", "zzz"})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
	assert.Empty(t, FilterAccessible(catalog, nil))
}

func TestLoadSystems_AllowListSelectsOnlyVisible(t *testing.T) {
	gw := &fakeGateway{systems: []domain.ChaoticSystemDefinition{{ID: "sys-1"}, {ID: "sys-2"}}}
	c, rec := newConsole(t, gw, &fakeChat{}, "sys-2")

	require.NoError(t, c.LoadSystems(context.Background(), ""))

	st := c.Store().State()
	require.Len(t, st.Systems, 1)
	assert.Equal(t, "sys-2", st.Systems[0].ID)
	assert.Equal(t, "sys-2", st.SelectedSystemID)
	assert.False(t, st.Loading[store.LoadingSystems])
	assert.Empty(t, st.GlobalError)
	assert.Empty(t, rec.errs)
}

func TestLoadSystems_SelectionPolicy(t *testing.T) {
	gw := &fakeGateway{systems: []domain.ChaoticSystemDefinition{{ID: "sys-1"}, {ID: "sys-2"}}}
	c, _ := newConsole(t, gw, &fakeChat{}, "sys-1", "sys-2")
	ctx := context.Background()

	require.NoError(t, c.LoadSystems(ctx, "sys-2"))
	assert.Equal(t, "sys-2", c.Store().State().SelectedSystemID, "preferred id wins")

	require.NoError(t, c.LoadSystems(ctx, ""))
	assert.Equal(t, "sys-2", c.Store().State().SelectedSystemID, "existing selection kept")

	require.NoError(t, c.LoadSystems(ctx, "sys-9"))
	assert.Equal(t, "sys-2", c.Store().State().SelectedSystemID, "invisible preferred id ignored")
}

func TestLoadSystems_FailureSurfacesBanner(t *testing.T) {
	gw := &fakeGateway{listErr: fmt.Errorf("%w: connection refused", domain.ErrTransport)}
	c, rec := newConsole(t, gw, &fakeChat{}, "sys-1")

	err := c.LoadSystems(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrTransport)

	st := c.Store().State()
	assert.Contains(t, st.GlobalError, "Failed to load initial systems: ")
	assert.Empty(t, st.Systems)
	assert.False(t, st.Loading[store.LoadingSystems])
	require.Len(t, rec.errs, 1)
}

func TestLoadSystems_LoadingClearedOnPanic(t *testing.T) {
	c, _ := newConsole(t, &fakeGateway{panicOnList: true}, &fakeChat{}, "sys-1")
	assert.Panics(t, func() { _ = c.LoadSystems(context.Background(), "") })
	assert.False(t, c.Store().State().Loading[store.LoadingSystems])
}

// ─── Parameters ─────────────────────────────────────────────────────────────

func TestUpdateParameter_RangeScenario(t *testing.T) {
	gw := &fakeGateway{systems: []domain.ChaoticSystemDefinition{rangedSystem("sys-1")}}
	c, rec := newConsole(t, gw, &fakeChat{}, "sys-1")
	ctx := context.Background()
	require.NoError(t, c.LoadSystems(ctx, ""))
	before, _ := c.Store().State().System("sys-1")

	_, err := c.UpdateParameter(ctx, "sys-1", "p1", domain.Number(150))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "p1", verr.ParameterID)

	st := c.Store().State()
	assert.Empty(t, st.GlobalError, "validation stays inline")
	assert.NotEmpty(t, st.ParameterErrors[store.ParameterErrorKey("sys-1", "p1")])
	unchanged, _ := st.System("sys-1")
	assert.Equal(t, before, unchanged)
	assert.Len(t, rec.errs, 1)

	updated, err := c.UpdateParameter(ctx, "sys-1", "p1", domain.Number(42))
	require.NoError(t, err)
	st = c.Store().State()
	got, _ := st.System("sys-1")
	assert.Equal(t, updated, got)
	assert.True(t, got.Parameters[0].CurrentValue.Equal(domain.Number(42)))
	assert.NotEqual(t, before.ContentHash, got.ContentHash)
	assert.Empty(t, st.ParameterErrors)
	assert.False(t, st.Loading[store.LoadingSystems])
}

func TestUpdateParameter_UnknownParameterUsesBanner(t *testing.T) {
	gw := &fakeGateway{systems: []domain.ChaoticSystemDefinition{rangedSystem("sys-1")}}
	c, _ := newConsole(t, gw, &fakeChat{}, "sys-1")

	_, err := c.UpdateParameter(context.Background(), "sys-1", "nope", domain.Number(1))
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, c.Store().State().GlobalError, "Failed to update parameter")
}

func TestUpdateParameter_InvisibleSystem(t *testing.T) {
	gw := &fakeGateway{systems: []domain.ChaoticSystemDefinition{rangedSystem("sys-1")}}
	c, _ := newConsole(t, gw, &fakeChat{}, "sys-2")

	_, err := c.UpdateParameter(context.Background(), "sys-1", "p1", domain.Number(1))
	require.ErrorIs(t, err, domain.ErrNotFound)
	v, _ := gw.systems[0].Parameters[0].CurrentValue.Float()
	assert.Equal(t, 10.0, v, "backend untouched")
}

// ─── Leverage analysis ──────────────────────────────────────────────────────

func TestFetchLeveragePoints_StoresBySystem(t *testing.T) {
	gw := &fakeGateway{
		systems: []domain.ChaoticSystemDefinition{{ID: "sys-1"}},
		points:  map[string][]domain.LeveragePoint{"sys-1": {{ID: "lp-1", SystemID: "sys-1"}}},
	}
	c, rec := newConsole(t, gw, &fakeChat{}, "sys-1")
	ctx := context.Background()
	require.NoError(t, c.LoadSystems(ctx, ""))

	require.NoError(t, c.FetchLeveragePoints(ctx, "sys-1"))
	a := c.Store().State().Analyses["sys-1"]
	require.Len(t, a.LeveragePoints, 1)
	assert.False(t, a.Loading)

	_, err := c.ProposeIntervention("sys-1", "lp-1")
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"lp-1", "sys-1"}}, rec.notified)
}

func TestFetchLeveragePoints_FailureIsInline(t *testing.T) {
	gw := &fakeGateway{
		systems:     []domain.ChaoticSystemDefinition{{ID: "sys-1"}},
		analysisErr: fmt.Errorf("%w: model offline", domain.ErrAnalysis),
	}
	c, rec := newConsole(t, gw, &fakeChat{}, "sys-1")
	ctx := context.Background()
	require.NoError(t, c.LoadSystems(ctx, ""))

	require.ErrorIs(t, c.FetchLeveragePoints(ctx, "sys-1"), domain.ErrAnalysis)
	st := c.Store().State()
	assert.Contains(t, st.Analyses["sys-1"].Error, "Leverage analysis unavailable")
	assert.Empty(t, st.GlobalError)
	assert.Len(t, rec.errs, 1)
}

func TestFetchLeveragePoints_StaleResultDiscarded(t *testing.T) {
	gw := &fakeGateway{
		systems: []domain.ChaoticSystemDefinition{{ID: "sys-1"}, {ID: "sys-2"}},
		points:  map[string][]domain.LeveragePoint{"sys-1": {{ID: "lp-1"}}},
		gate:    make(chan struct{}),
	}
	c, _ := newConsole(t, gw, &fakeChat{}, "sys-1", "sys-2")
	ctx := context.Background()
	require.NoError(t, c.LoadSystems(ctx, "sys-1"))

	done := make(chan error, 1)
	go func() { done <- c.FetchLeveragePoints(ctx, "sys-1") }()
	require.Eventually(t, func() bool { return gw.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.SelectSystem("sys-2")
	close(gw.gate)
	require.NoError(t, <-done)

	a := c.Store().State().Analyses["sys-1"]
	assert.Empty(t, a.LeveragePoints)
	assert.False(t, a.Loading)
}

func TestFetchLeveragePoints_SharedCallSurvivesCancelledCaller(t *testing.T) {
	gw := &fakeGateway{
		systems: []domain.ChaoticSystemDefinition{{ID: "sys-1"}},
		points:  map[string][]domain.LeveragePoint{"sys-1": {{ID: "lp-1"}}},
		gate:    make(chan struct{}),
	}
	c, rec := newConsole(t, gw, &fakeChat{}, "sys-1")
	require.NoError(t, c.LoadSystems(context.Background(), "sys-1"))

	var started atomic.Int32
	unsubscribe := c.Store().Subscribe(func(_ store.State, tr store.Transition) {
		if l, ok := tr.(store.SetAnalysisLoading); ok && l.Loading {
			started.Add(1)
		}
	})
	defer unsubscribe()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- c.FetchLeveragePoints(firstCtx, "sys-1") }()
	require.Eventually(t, func() bool { return gw.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- c.FetchLeveragePoints(context.Background(), "sys-1") }()
	require.Eventually(t, func() bool { return started.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond) // let the second caller join the in-flight call

	cancelFirst()
	require.ErrorIs(t, <-first, context.Canceled)

	close(gw.gate)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), gw.calls.Load())
	a := c.Store().State().Analyses["sys-1"]
	require.Len(t, a.LeveragePoints, 1)
	assert.Empty(t, a.Error)
	assert.Empty(t, rec.errs)
}

func TestProposeIntervention_RequiresAnalysis(t *testing.T) {
	c, rec := newConsole(t, &fakeGateway{}, &fakeChat{}, "sys-1")
	_, err := c.ProposeIntervention("sys-1", "lp-1")
	require.ErrorIs(t, err, domain.ErrNotAnalyzed)
	assert.Empty(t, rec.notified)
}

// ─── Chat ───────────────────────────────────────────────────────────────────

func userTexts(msgs []domain.ChatMessage) []string {
	var out []string
	for _, m := range msgs {
		if m.Sender == domain.SenderUser {
			out = append(out, m.Text)
		}
	}
	return out
}

func TestSendChat_PreservesOrder(t *testing.T) {
	chat := &fakeChat{}
	c, _ := newConsole(t, &fakeGateway{}, chat)
	ctx := context.Background()
	require.NoError(t, c.SetChatModel(domain.ModelClaude))

	_, err := c.SendChat(ctx, "A")
	require.NoError(t, err)
	reply, err := c.SendChat(ctx, "B")
	require.NoError(t, err)

	msgs := c.Store().State().Chat.Messages
	assert.Equal(t, []string{"A", "B"}, userTexts(msgs))
	require.Len(t, msgs, 4)
	assert.Equal(t, "re: B", reply.Text)
	assert.Equal(t, domain.ModelClaude, reply.AIModel)
	assert.Len(t, chat.seen[1], 2, "history excludes the new turn")
	assert.False(t, c.Store().State().Chat.IsThinking)
}

func TestSendChat_FailureKeepsUserMessage(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("%w: quota", domain.ErrAIService)}
	c, rec := newConsole(t, &fakeGateway{}, chat)

	_, err := c.SendChat(context.Background(), "hello")
	require.ErrorIs(t, err, domain.ErrAIService)

	st := c.Store().State()
	require.Len(t, st.Chat.Messages, 1)
	assert.Equal(t, domain.SenderUser, st.Chat.Messages[0].Sender)
	assert.True(t, st.Chat.Failed[st.Chat.Messages[0].ID])
	assert.False(t, st.Chat.IsThinking)
	assert.Empty(t, st.GlobalError)
	assert.Len(t, rec.errs, 1)
}

func TestSendChat_ReplyKeepsModelOfTurn(t *testing.T) {
	chat := &fakeChat{gate: make(chan struct{}), entered: make(chan struct{})}
	c, _ := newConsole(t, &fakeGateway{}, chat)
	require.NoError(t, c.SetChatModel(domain.ModelChatGPT))

	done := make(chan domain.ChatMessage, 1)
	go func() {
		reply, err := c.SendChat(context.Background(), "hello")
		assert.NoError(t, err)
		done <- reply
	}()
	<-chat.entered
	require.NoError(t, c.SetChatModel(domain.ModelClaude))
	close(chat.gate)

	reply := <-done
	assert.Equal(t, domain.ModelChatGPT, reply.AIModel)
	msgs := c.Store().State().Chat.Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.ModelChatGPT, msgs[1].AIModel)
	assert.Equal(t, domain.ModelClaude, c.Store().State().Chat.CurrentModel)
}

func TestSendChat_RejectsBlankAndBusy(t *testing.T) {
	chat := &fakeChat{gate: make(chan struct{}), entered: make(chan struct{})}
	c, _ := newConsole(t, &fakeGateway{}, chat)
	ctx := context.Background()

	_, err := c.SendChat(ctx, "   ")
	require.ErrorIs(t, err, domain.ErrEmptyMessage)
	assert.Empty(t, c.Store().State().Chat.Messages)

	done := make(chan error, 1)
	go func() {
		_, err := c.SendChat(ctx, "first")
		done <- err
	}()
	<-chat.entered
	assert.True(t, c.Store().State().Chat.IsThinking)

	_, err = c.SendChat(ctx, "second")
	require.ErrorIs(t, err, domain.ErrChatBusy)

	close(chat.gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first"}, userTexts(c.Store().State().Chat.Messages))
	assert.False(t, c.Store().State().Chat.IsThinking)
}

func TestSetChatModel_Unknown(t *testing.T) {
	c, _ := newConsole(t, &fakeGateway{}, &fakeChat{})
	require.ErrorIs(t, c.SetChatModel("Eliza"), domain.ErrValidation)
	assert.Equal(t, domain.ModelGemini, c.Store().State().Chat.CurrentModel)
}

// ─── Simulations ────────────────────────────────────────────────────────────

func TestStartSimulation_UpsertsRun(t *testing.T) {
	gw := &fakeGateway{systems: []domain.ChaoticSystemDefinition{{ID: "sys-1"}}}
	c, _ := newConsole(t, gw, &fakeChat{}, "sys-1")

	run, err := c.StartSimulation(context.Background(), domain.StartRequest{SystemID: "sys-1"})
	require.NoError(t, err)
	assert.Equal(t, "sysadmin-001", run.InitiatedBy)

	st := c.Store().State()
	require.Len(t, st.Simulations, 1)
	assert.Equal(t, domain.RunRunning, st.Simulations[0].Status)
	assert.False(t, st.Loading[store.LoadingSimulations])
}

func TestRefreshSimulation_NotFound(t *testing.T) {
	c, rec := newConsole(t, &fakeGateway{}, &fakeChat{})
	_, err := c.RefreshSimulation(context.Background(), "sim-x")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotEmpty(t, c.Store().State().GlobalError)
	assert.Len(t, rec.errs, 1)
}

// ─── Preferences ────────────────────────────────────────────────────────────

func TestPreferences_PersistAndRestore(t *testing.T) {
	prefs := &memPrefs{m: map[string]string{}}
	c, _ := newConsole(t, &fakeGateway{}, &fakeChat{})
	c.prefs = prefs
	ctx := context.Background()

	require.NoError(t, c.SetPreference(ctx, store.PrefDarkMode, true))
	require.NoError(t, c.SetPreference(ctx, store.PrefRefreshInterval, 15))
	require.NoError(t, c.SetPreference(ctx, store.PrefNotifications, store.NotificationSettings{CriticalAlerts: true}))
	assert.Equal(t, "true", prefs.m["darkMode"])

	err := c.SetPreference(ctx, store.PrefDarkMode, "yes")
	require.True(t, errors.Is(err, domain.ErrValidation))

	restored := New(store.New(), &fakeGateway{}, &fakeChat{}, Config{}, WithPreferenceStore(prefs))
	require.NoError(t, restored.RestorePreferences(ctx))
	p := restored.Store().State().Preferences
	assert.True(t, p.DarkMode)
	assert.Equal(t, 15, p.RefreshIntervalSeconds)
	assert.False(t, p.NotificationSettings.SimulationUpdates)
}

func TestRunRefreshLoop_StopsOnCancel(t *testing.T) {
	c, _ := newConsole(t, &fakeGateway{}, &fakeChat{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.RunRefreshLoop(ctx))
}
