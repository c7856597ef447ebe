package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaostheorist/chaos/internal/domain"
)

func sys(id string) domain.ChaoticSystemDefinition {
	return domain.ChaoticSystemDefinition{ID: id, Name: "System " + id, ContentHash: "h-" + id}
}

func msg(id, text string) domain.ChatMessage {
	return domain.ChatMessage{ID: id, Text: text, Sender: domain.SenderUser}
}

func allTransitions() []Transition {
	return []Transition{
		SelectSystem{ID: "sys-1"},
		ReplaceSystems{Systems: []domain.ChaoticSystemDefinition{sys("sys-1"), sys("sys-2")}},
		UpdateSystem{System: sys("sys-2")},
		SetLoading{Key: LoadingSystems, Value: true},
		SetGlobalError{Message: "boom"},
		SetPreference{Key: PrefDarkMode, Value: true},
		ToggleChat{},
		AddChatMessage{Message: msg("m1", "A")},
		SetChatThinking{Thinking: true},
		SetChatModel{Model: domain.ModelClaude},
		MarkChatFailed{MessageID: "m1"},
		SetAnalysisLoading{SystemID: "sys-1", Loading: true},
		SetLeveragePoints{SystemID: "sys-1", Points: []domain.LeveragePoint{{ID: "lp-1"}}},
		SetAnalysisError{SystemID: "sys-1", Message: "down"},
		SetParameterError{SystemID: "sys-1", ParameterID: "p1", Message: "out of range"},
		UpsertSimulation{Run: domain.SimulationRun{ID: "sim-1"}},
	}
}

// ─── Purity ─────────────────────────────────────────────────────────────────

func baseState() State {
	s := Apply(Initial(), ReplaceSystems{Systems: []domain.ChaoticSystemDefinition{sys("sys-1"), sys("sys-2")}})
	s = Apply(s, AddChatMessage{Message: msg("m0", "hello")})
	return Apply(s, SetAnalysisLoading{SystemID: "sys-1", Loading: false})
}

func TestApply_Pure(t *testing.T) {
	for _, tr := range allTransitions() {
		t.Run(tr.Name(), func(t *testing.T) {
			base := baseState()
			first := Apply(base, tr)
			second := Apply(base, tr)
			assert.Equal(t, first, second)
			assert.Equal(t, baseState(), base, "input state must not be mutated")
		})
	}
}

func TestApply_NilTransitionIsNoop(t *testing.T) {
	s := Initial()
	assert.Equal(t, s, Apply(s, nil))
}

// ─── Systems ────────────────────────────────────────────────────────────────

func TestSelectSystem_Unconditional(t *testing.T) {
	s := Apply(Initial(), SelectSystem{ID: "does-not-exist"})
	assert.Equal(t, "does-not-exist", s.SelectedSystemID)
	_, ok := s.Selected()
	assert.False(t, ok)

	s = Apply(s, SelectSystem{})
	assert.Empty(t, s.SelectedSystemID)
}

func TestReplaceSystems_DoesNotMerge(t *testing.T) {
	s := Apply(Initial(), ReplaceSystems{Systems: []domain.ChaoticSystemDefinition{sys("a"), sys("b")}})
	s = Apply(s, ReplaceSystems{Systems: []domain.ChaoticSystemDefinition{sys("c")}})
	require.Len(t, s.Systems, 1)
	assert.Equal(t, "c", s.Systems[0].ID)
}

func TestUpdateSystem_ReplacesMatch(t *testing.T) {
	s := Apply(Initial(), ReplaceSystems{Systems: []domain.ChaoticSystemDefinition{sys("a"), sys("b"), sys("c")}})
	updated := sys("b")
	updated.ContentHash = "h-b-2"

	next := Apply(s, UpdateSystem{System: updated})

	got, ok := next.System("b")
	require.True(t, ok)
	assert.Equal(t, "h-b-2", got.ContentHash)
	assert.Equal(t, s.Systems[0], next.Systems[0])
	assert.Equal(t, s.Systems[2], next.Systems[2])
	assert.Equal(t, "h-b", s.Systems[1].ContentHash, "previous snapshot untouched")
}

func TestUpdateSystem_UnknownIDLeavesCatalog(t *testing.T) {
	s := Apply(Initial(), ReplaceSystems{Systems: []domain.ChaoticSystemDefinition{sys("a"), sys("b")}})
	next := Apply(s, UpdateSystem{System: sys("zzz")})

	assert.Equal(t, s.Systems, next.Systems)
	require.NotEmpty(t, next.Systems)
	assert.Same(t, &s.Systems[0], &next.Systems[0], "catalog slice is reused when nothing matched")
}

// ─── Loading / errors / preferences ─────────────────────────────────────────

func TestSetLoading_SingleKey(t *testing.T) {
	s := Apply(Initial(), SetLoading{Key: LoadingSimulations, Value: true})
	for _, k := range LoadingKeys {
		assert.Equal(t, k == LoadingSimulations, s.Loading[k], "key %s", k)
	}
	assert.False(t, Initial().Loading[LoadingSimulations])
}

func TestSetLoading_UnknownKey(t *testing.T) {
	s := Initial()
	next := Apply(s, SetLoading{Key: "spaceships", Value: true})
	assert.Equal(t, s, next)
}

func TestSetGlobalError_SingleSlot(t *testing.T) {
	s := Apply(Initial(), SetGlobalError{Message: "first"})
	s = Apply(s, SetGlobalError{Message: "second"})
	assert.Equal(t, "second", s.GlobalError)
	s = Apply(s, SetGlobalError{})
	assert.Empty(t, s.GlobalError)
}

func TestSetPreference(t *testing.T) {
	s := Apply(Initial(), SetPreference{Key: PrefDarkMode, Value: true})
	assert.True(t, s.Preferences.DarkMode)
	assert.Equal(t, 60, s.Preferences.RefreshIntervalSeconds)

	s = Apply(s, SetPreference{Key: PrefRefreshInterval, Value: float64(30)})
	assert.Equal(t, 30, s.Preferences.RefreshIntervalSeconds)

	s = Apply(s, SetPreference{Key: PrefNotifications, Value: NotificationSettings{CriticalAlerts: true}})
	assert.False(t, s.Preferences.NotificationSettings.SimulationUpdates)
	assert.True(t, s.Preferences.DarkMode, "other keys are kept")
}

func TestSetPreference_WrongTypeIgnored(t *testing.T) {
	s := Initial()
	assert.Equal(t, s, Apply(s, SetPreference{Key: PrefDarkMode, Value: "yes"}))
	assert.Equal(t, s, Apply(s, SetPreference{Key: PrefRefreshInterval, Value: -5}))
	assert.Equal(t, s, Apply(s, SetPreference{Key: "fontSize", Value: 12}))
}

// ─── Chat ───────────────────────────────────────────────────────────────────

func TestAddChatMessage_AppendOnly(t *testing.T) {
	s := Apply(Initial(), AddChatMessage{Message: msg("a", "A")})
	before := s.Chat.Messages
	s = Apply(s, AddChatMessage{Message: msg("b", "B")})

	require.Len(t, s.Chat.Messages, 2)
	assert.Equal(t, "A", s.Chat.Messages[0].Text)
	assert.Equal(t, "B", s.Chat.Messages[1].Text)
	assert.Len(t, before, 1, "prior snapshot keeps its length")

	s = Apply(s, AddChatMessage{Message: msg("a", "A")})
	assert.Len(t, s.Chat.Messages, 3, "no deduplication")
}

func TestChatFlags(t *testing.T) {
	s := Apply(Initial(), ToggleChat{})
	assert.True(t, s.Chat.IsOpen)
	s = Apply(s, ToggleChat{})
	assert.False(t, s.Chat.IsOpen)

	s = Apply(s, SetChatThinking{Thinking: true})
	assert.True(t, s.Chat.IsThinking)
	s = Apply(s, SetChatModel{Model: domain.ModelChatGPT})
	assert.Equal(t, domain.ModelChatGPT, s.Chat.CurrentModel)

	s = Apply(s, MarkChatFailed{MessageID: "m9"})
	assert.True(t, s.Chat.Failed["m9"])
}

// ─── Analyses / parameter errors / simulations ──────────────────────────────

func TestAnalysisLifecycle(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := Apply(Initial(), SetAnalysisLoading{SystemID: "a", Loading: true})
	assert.True(t, s.Analyses["a"].Loading)

	s = Apply(s, SetLeveragePoints{SystemID: "a", Points: []domain.LeveragePoint{{ID: "lp"}}, At: at})
	s = Apply(s, SetAnalysisLoading{SystemID: "a", Loading: false})
	a := s.Analyses["a"]
	assert.False(t, a.Loading)
	assert.Len(t, a.LeveragePoints, 1)
	assert.Equal(t, at, a.UpdatedAt)

	s = Apply(s, SetAnalysisError{SystemID: "b", Message: "analysis unavailable"})
	assert.Equal(t, "analysis unavailable", s.Analyses["b"].Error)
	s = Apply(s, SetAnalysisLoading{SystemID: "b", Loading: true})
	assert.Empty(t, s.Analyses["b"].Error, "a new request clears the inline error")
	assert.Len(t, s.Analyses["a"].LeveragePoints, 1)
}

func TestParameterErrors(t *testing.T) {
	s := Apply(Initial(), SetParameterError{SystemID: "a", ParameterID: "p1", Message: "too big"})
	assert.Equal(t, "too big", s.ParameterErrors[ParameterErrorKey("a", "p1")])
	s = Apply(s, SetParameterError{SystemID: "a", ParameterID: "p1"})
	assert.Empty(t, s.ParameterErrors)
}

func TestUpsertSimulation(t *testing.T) {
	s := Apply(Initial(), UpsertSimulation{Run: domain.SimulationRun{ID: "r1", Status: domain.RunRunning}})
	s = Apply(s, UpsertSimulation{Run: domain.SimulationRun{ID: "r2", Status: domain.RunRunning}})
	s = Apply(s, UpsertSimulation{Run: domain.SimulationRun{ID: "r1", Status: domain.RunCompleted}})
	require.Len(t, s.Simulations, 2)
	assert.Equal(t, domain.RunCompleted, s.Simulations[0].Status)
}

// ─── Store ──────────────────────────────────────────────────────────────────

func TestStore_DispatchAndSubscribe(t *testing.T) {
	st := New()
	var seen []string
	unsubscribe := st.Subscribe(func(s State, tr Transition) {
		seen = append(seen, tr.Name())
	})

	st.Dispatch(SelectSystem{ID: "a"})
	st.Dispatch(UpdateSystem{System: sys("missing")})
	st.Dispatch(ToggleChat{})
	unsubscribe()
	st.Dispatch(ToggleChat{})

	assert.Equal(t, []string{"select_system", "toggle_chat"}, seen)
	assert.Equal(t, "a", st.State().SelectedSystemID)
	assert.False(t, st.State().Chat.IsOpen)
}

func TestStore_ConcurrentDispatchSerialized(t *testing.T) {
	st := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Dispatch(AddChatMessage{Message: msg(fmt.Sprint(i), "x")})
		}(i)
	}
	wg.Wait()
	assert.Len(t, st.State().Chat.Messages, 50, "no append lost to a stale snapshot")
}

func TestStore_SingleFlowOrderPreserved(t *testing.T) {
	st := New()
	st.Dispatch(AddChatMessage{Message: msg("1", "A")})
	st.Dispatch(AddChatMessage{Message: msg("2", "B")})
	msgs := st.State().Chat.Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"A", "B"}, []string{msgs[0].Text, msgs[1].Text})
}
