// Package console sequences Resource Gateway calls and folds their results
// into the state store. Every operation follows the same template: mark the
// resource loading, clear the global error, call out, fold the result or
// surface the failure, and clear the loading flag on every path.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/infra/metrics"
	"github.com/chaostheorist/chaos/internal/store"
)

// analysisTimeout bounds one shared leverage analysis call.
const analysisTimeout = 2 * time.Minute

// Config is the per-actor setup supplied at startup.
type Config struct {
	// Access lists the system ids the current actor may see, in order.
	Access domain.AccessPolicy
	// CurrentUser is recorded as the initiator of runs and proposals.
	CurrentUser string
	// Instruction is the system-level prompt sent with every chat turn.
	Instruction string
}

// Console is the orchestration layer over one Store.
type Console struct {
	store         *store.Store
	gateway       domain.ResourceGateway
	chat          domain.ChatProvider
	reporter      domain.ErrorReporter
	interventions domain.InterventionReporter
	prefs         domain.PreferenceStore
	cfg           Config
	logger        *slog.Logger

	analyses singleflight.Group
	chatBusy atomic.Bool

	now   func() time.Time
	newID func() string
}

// Option configures a Console.
type Option func(*Console)

// WithErrorReporter sets the collaborator that receives failed operations.
func WithErrorReporter(r domain.ErrorReporter) Option {
	return func(c *Console) { c.reporter = r }
}

// WithInterventionReporter sets the collaborator notified of proposals.
func WithInterventionReporter(r domain.InterventionReporter) Option {
	return func(c *Console) { c.interventions = r }
}

// WithPreferenceStore persists preferences across restarts.
func WithPreferenceStore(p domain.PreferenceStore) Option {
	return func(c *Console) { c.prefs = p }
}

// WithLogger sets the console logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Console) { c.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Console) { c.now = now }
}

// WithIDGenerator overrides how chat message ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(c *Console) { c.newID = gen }
}

// New creates a console over st.
func New(st *store.Store, gw domain.ResourceGateway, chat domain.ChatProvider, cfg Config, opts ...Option) *Console {
	c := &Console{
		store:         st,
		gateway:       gw,
		chat:          chat,
		reporter:      discard{},
		interventions: discard{},
		cfg:           cfg,
		logger:        slog.Default(),
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store this console dispatches to.
func (c *Console) Store() *store.Store { return c.store }

// ─── Catalog ────────────────────────────────────────────────────────────────

// FilterAccessible returns the systems whose id is in policy, keeping
// catalog order. Systems outside the policy are dropped entirely.
func FilterAccessible(systems []domain.ChaoticSystemDefinition, policy domain.AccessPolicy) []domain.ChaoticSystemDefinition {
	out := make([]domain.ChaoticSystemDefinition, 0, len(systems))
	for _, s := range systems {
		if policy.Allows(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// LoadSystems fetches the catalog, restricts it to the access policy and
// replaces the stored catalog. The preferred id wins the selection when it
// is visible; otherwise the first system is selected if nothing is.
func (c *Console) LoadSystems(ctx context.Context, preferredID string) error {
	return c.track(store.LoadingSystems, "load_systems", "Failed to load initial systems", func() error {
		all, err := c.gateway.ListSystems(ctx)
		if err != nil {
			return err
		}
		visible := FilterAccessible(all, c.cfg.Access)
		metrics.SystemsVisible.Set(float64(len(visible)))
		c.store.Dispatch(store.ReplaceSystems{Systems: visible})

		switch {
		case preferredID != "" && containsSystem(visible, preferredID):
			c.store.Dispatch(store.SelectSystem{ID: preferredID})
		case c.store.State().SelectedSystemID == "" && len(visible) > 0:
			c.store.Dispatch(store.SelectSystem{ID: visible[0].ID})
		}
		c.logger.Debug("catalog loaded", "fetched", len(all), "visible", len(visible))
		return nil
	})
}

// SelectSystem changes the selection unconditionally.
func (c *Console) SelectSystem(id string) {
	c.store.Dispatch(store.SelectSystem{ID: id})
}

// UpdateParameter writes a parameter value, then re-fetches the whole system
// and stores only the re-fetched copy. Validation failures are kept next to
// the parameter instead of the global error slot.
func (c *Console) UpdateParameter(ctx context.Context, systemID, parameterID string, value domain.Value) (domain.ChaoticSystemDefinition, error) {
	var fresh domain.ChaoticSystemDefinition
	err := c.track(store.LoadingSystems, "update_parameter", "Failed to update parameter", func() error {
		if !c.cfg.Access.Allows(systemID) {
			return domain.NotFound("system", systemID)
		}
		if _, err := c.gateway.UpdateParameter(ctx, systemID, parameterID, value); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				c.store.Dispatch(store.SetParameterError{SystemID: systemID, ParameterID: parameterID, Message: err.Error()})
				return inline{err}
			}
			return fmt.Errorf("update parameter %s: %w", parameterID, err)
		}
		sys, err := c.gateway.GetSystem(ctx, systemID)
		if err != nil {
			return fmt.Errorf("refresh system %s: %w", systemID, err)
		}
		c.store.Dispatch(store.SetParameterError{SystemID: systemID, ParameterID: parameterID})
		c.store.Dispatch(store.UpdateSystem{System: sys})
		metrics.ParameterUpdates.WithLabelValues(systemID).Inc()
		fresh = sys
		return nil
	})
	return fresh, err
}

// ─── Leverage analysis ──────────────────────────────────────────────────────

// FetchLeveragePoints runs the leverage analysis for a system and stores the
// result under its id. Concurrent requests for one system share a call;
// a caller that gives up gets its own context error while the call goes on
// for the others. A result that arrives after the selection moved on is
// dropped.
func (c *Console) FetchLeveragePoints(ctx context.Context, systemID string) error {
	if !c.cfg.Access.Allows(systemID) {
		err := domain.NotFound("system", systemID)
		c.report("identify_leverage_points", err)
		return err
	}
	issuedFor := c.store.State().SelectedSystemID
	start := time.Now()

	c.store.Dispatch(store.SetAnalysisLoading{SystemID: systemID, Loading: true})
	defer c.store.Dispatch(store.SetAnalysisLoading{SystemID: systemID, Loading: false})

	// The shared call outlives any one caller: it runs on a context that
	// keeps the first caller's values but not its cancellation.
	ch := c.analyses.DoChan(systemID, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), analysisTimeout)
		defer cancel()
		return c.gateway.IdentifyLeveragePoints(callCtx, systemID)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		c.logger.Debug("leverage analysis abandoned by caller", "system", systemID, "error", ctx.Err())
		return ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	metrics.OperationLatency.WithLabelValues("identify_leverage_points").Observe(time.Since(start).Seconds())

	if current := c.store.State().SelectedSystemID; current != issuedFor {
		metrics.StaleResponses.WithLabelValues("identify_leverage_points").Inc()
		c.logger.Debug("discarding stale leverage analysis",
			"system", systemID, "issued_for", issuedFor, "selected", current, "failed", err != nil)
		return nil
	}
	if err != nil {
		c.store.Dispatch(store.SetAnalysisError{SystemID: systemID, Message: "Leverage analysis unavailable: " + err.Error()})
		c.report("identify_leverage_points", err)
		return err
	}
	points, _ := v.([]domain.LeveragePoint)
	c.store.Dispatch(store.SetLeveragePoints{SystemID: systemID, Points: points, At: c.now()})
	c.logger.Debug("leverage analysis stored", "system", systemID, "points", len(points), "shared", shared)
	return nil
}

// ProposeIntervention records that the operator proposed acting on a
// leverage point from the stored analysis of a system. The leverage point
// itself is not changed.
func (c *Console) ProposeIntervention(systemID, leveragePointID string) (domain.InterventionProposal, error) {
	analysis := c.store.State().Analyses[systemID]
	found := false
	for _, lp := range analysis.LeveragePoints {
		if lp.ID == leveragePointID {
			found = true
			break
		}
	}
	if !found {
		return domain.InterventionProposal{}, fmt.Errorf("%w: %s on system %s", domain.ErrNotAnalyzed, leveragePointID, systemID)
	}
	c.interventions.Notify(leveragePointID, systemID)
	c.logger.Info("intervention proposed", "system", systemID, "leverage_point", leveragePointID, "by", c.cfg.CurrentUser)
	return domain.InterventionProposal{
		LeveragePointID: leveragePointID,
		SystemID:        systemID,
		ProposedBy:      c.cfg.CurrentUser,
		ProposedAt:      c.now(),
	}, nil
}

// ─── Simulations ────────────────────────────────────────────────────────────

// StartSimulation starts a run and adds it to the active simulations.
func (c *Console) StartSimulation(ctx context.Context, req domain.StartRequest) (domain.SimulationRun, error) {
	if req.InitiatedBy == "" {
		req.InitiatedBy = c.cfg.CurrentUser
	}
	var run domain.SimulationRun
	err := c.track(store.LoadingSimulations, "start_simulation", "Failed to start simulation", func() error {
		if !c.cfg.Access.Allows(req.SystemID) {
			return domain.NotFound("system", req.SystemID)
		}
		r, err := c.gateway.StartSimulation(ctx, req)
		if err != nil {
			return err
		}
		c.store.Dispatch(store.UpsertSimulation{Run: r})
		run = r
		return nil
	})
	return run, err
}

// RefreshSimulation re-fetches a run and replaces the stored copy.
func (c *Console) RefreshSimulation(ctx context.Context, id string) (domain.SimulationRun, error) {
	var run domain.SimulationRun
	err := c.track(store.LoadingSimulations, "get_simulation", "Failed to refresh simulation", func() error {
		r, err := c.gateway.GetSimulation(ctx, id)
		if err != nil {
			return err
		}
		c.store.Dispatch(store.UpsertSimulation{Run: r})
		run = r
		return nil
	})
	return run, err
}

// ─── Chat ───────────────────────────────────────────────────────────────────

// ToggleChat opens or closes the analyst panel.
func (c *Console) ToggleChat() {
	c.store.Dispatch(store.ToggleChat{})
}

// SetChatModel switches the model label attached to analyst replies.
func (c *Console) SetChatModel(m domain.AIModel) error {
	if !m.Valid() {
		return &domain.ValidationError{Reason: fmt.Sprintf("unknown AI model %q", m)}
	}
	c.store.Dispatch(store.SetChatModel{Model: m})
	return nil
}

// SendChat appends the user's message at once, then asks the provider for
// a reply. On failure the user message stays and is marked failed; no reply
// is appended. The thinking flag is cleared on every path.
func (c *Console) SendChat(ctx context.Context, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}
	if !c.chatBusy.CompareAndSwap(false, true) {
		return domain.ChatMessage{}, domain.ErrChatBusy
	}
	defer c.chatBusy.Store(false)

	chat := c.store.State().Chat
	history, model := chat.Messages, chat.CurrentModel
	user := domain.ChatMessage{
		ID:        c.newID(),
		Text:      text,
		Sender:    domain.SenderUser,
		Timestamp: c.now(),
	}
	c.store.Dispatch(store.AddChatMessage{Message: user})
	c.store.Dispatch(store.SetChatThinking{Thinking: true})
	defer c.store.Dispatch(store.SetChatThinking{Thinking: false})

	reply, err := c.chat.Complete(ctx, history, text, c.cfg.Instruction)
	if err != nil {
		metrics.ChatTurns.WithLabelValues("failed").Inc()
		c.store.Dispatch(store.MarkChatFailed{MessageID: user.ID})
		c.report("chat", err)
		return domain.ChatMessage{}, err
	}

	ai := domain.ChatMessage{
		ID:        c.newID(),
		Text:      reply,
		Sender:    domain.SenderAI,
		Timestamp: c.now(),
		AIModel:   model,
	}
	c.store.Dispatch(store.AddChatMessage{Message: ai})
	metrics.ChatTurns.WithLabelValues("ok").Inc()
	return ai, nil
}

// ─── Preferences ────────────────────────────────────────────────────────────

// SetPreference merges one preference and persists it when a preference
// store is wired. A value of the wrong type is rejected.
func (c *Console) SetPreference(ctx context.Context, key store.PreferenceKey, value any) error {
	if !store.PreferenceAccepted(key, value) {
		return &domain.ValidationError{Reason: fmt.Sprintf("invalid value for preference %q", key)}
	}
	c.store.Dispatch(store.SetPreference{Key: key, Value: value})
	if c.prefs == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode preference %s: %w", key, err)
	}
	if err := c.prefs.SavePreference(ctx, string(key), string(raw)); err != nil {
		c.logger.Warn("preference not persisted", "key", key, "error", err)
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	return nil
}

// RestorePreferences loads persisted preferences into the store. Entries
// that no longer decode are skipped.
func (c *Console) RestorePreferences(ctx context.Context) error {
	if c.prefs == nil {
		return nil
	}
	saved, err := c.prefs.LoadPreferences(ctx)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	for k, raw := range saved {
		key := store.PreferenceKey(k)
		value, err := DecodePreference(key, raw)
		if err != nil {
			c.logger.Debug("skipping stored preference", "key", k, "error", err)
			continue
		}
		c.store.Dispatch(store.SetPreference{Key: key, Value: value})
	}
	return nil
}

// DecodePreference decodes a JSON-encoded preference value into the Go type
// the store accepts for key.
func DecodePreference(key store.PreferenceKey, raw string) (any, error) {
	switch key {
	case store.PrefDarkMode:
		var b bool
		err := json.Unmarshal([]byte(raw), &b)
		return b, err
	case store.PrefRefreshInterval:
		var n int
		err := json.Unmarshal([]byte(raw), &n)
		return n, err
	case store.PrefNotifications:
		var ns store.NotificationSettings
		err := json.Unmarshal([]byte(raw), &ns)
		return ns, err
	}
	return nil, fmt.Errorf("unknown preference %q", key)
}

// ─── Refresh loop ───────────────────────────────────────────────────────────

// RunRefreshLoop reloads the catalog every refresh interval until ctx is
// done. The interval is read from the store before each wait.
func (c *Console) RunRefreshLoop(ctx context.Context) error {
	for {
		interval := time.Duration(c.store.State().Preferences.RefreshIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if err := c.LoadSystems(ctx, ""); err != nil {
			c.logger.Warn("catalog refresh failed", "error", err)
		}
	}
}

// ─── Template ───────────────────────────────────────────────────────────────

// inline marks a failure already shown next to the control that caused it.
type inline struct{ error }

func (e inline) Unwrap() error { return e.error }

// track runs fn under the loading flag for key. Failures are reported and,
// unless fn surfaced them inline, put in the global error slot prefixed by
// label.
func (c *Console) track(key store.LoadingKey, op, label string, fn func() error) (err error) {
	start := time.Now()
	c.store.Dispatch(store.SetLoading{Key: key, Value: true})
	c.store.Dispatch(store.SetGlobalError{})
	defer c.store.Dispatch(store.SetLoading{Key: key, Value: false})

	err = fn()
	metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	var in inline
	if errors.As(err, &in) {
		err = in.error
	} else {
		c.store.Dispatch(store.SetGlobalError{Message: label + ": " + err.Error()})
	}
	c.report(op, err)
	return err
}

func (c *Console) report(op string, err error) {
	metrics.OperationFailures.WithLabelValues(op, domain.Kind(err)).Inc()
	c.logger.Debug("operation failed", "operation", op, "error", err)
	c.reporter.Report(err)
}

func containsSystem(systems []domain.ChaoticSystemDefinition, id string) bool {
	for _, s := range systems {
		if s.ID == id {
			return true
		}
	}
	return false
}

type discard struct{}

func (discard) Report(error)          {}
func (discard) Notify(string, string) {}
