package store

import (
	"time"

	"github.com/chaostheorist/chaos/internal/domain"
)

// Transition is a named instruction that maps one state to the next.
// The set is closed: only this package defines transitions.
type Transition interface {
	Name() string
	transition()
}

// SelectSystem sets the selected system id unconditionally. An empty id
// clears the selection.
type SelectSystem struct{ ID string }

// ReplaceSystems replaces the whole catalog.
type ReplaceSystems struct{ Systems []domain.ChaoticSystemDefinition }

// UpdateSystem replaces the catalog entry with the same id.
type UpdateSystem struct{ System domain.ChaoticSystemDefinition }

// SetLoading updates one entry of the loading map.
type SetLoading struct {
	Key   LoadingKey
	Value bool
}

// SetGlobalError replaces the global error slot. Empty clears it.
type SetGlobalError struct{ Message string }

// SetPreference merges one key into the user preferences.
type SetPreference struct {
	Key   PreferenceKey
	Value any
}

// ToggleChat opens or closes the chat panel.
type ToggleChat struct{}

// AddChatMessage appends a message to the conversation.
type AddChatMessage struct{ Message domain.ChatMessage }

// SetChatThinking flags an in-flight completion.
type SetChatThinking struct{ Thinking bool }

// SetChatModel switches the analyst model label.
type SetChatModel struct{ Model domain.AIModel }

// MarkChatFailed records that the completion for a user message failed.
type MarkChatFailed struct{ MessageID string }

// SetAnalysisLoading flags a leverage analysis in flight for a system.
type SetAnalysisLoading struct {
	SystemID string
	Loading  bool
}

// SetLeveragePoints stores an analysis result for a system.
type SetLeveragePoints struct {
	SystemID string
	Points   []domain.LeveragePoint
	At       time.Time
}

// SetAnalysisError stores an inline "analysis unavailable" message.
type SetAnalysisError struct {
	SystemID string
	Message  string
}

// SetParameterError stores or clears the inline error of a parameter control.
type SetParameterError struct {
	SystemID    string
	ParameterID string
	Message     string
}

// UpsertSimulation inserts or replaces an active simulation run by id.
type UpsertSimulation struct{ Run domain.SimulationRun }

func (SelectSystem) Name() string       { return "select_system" }
func (ReplaceSystems) Name() string     { return "replace_systems" }
func (UpdateSystem) Name() string       { return "update_system" }
func (SetLoading) Name() string         { return "set_loading" }
func (SetGlobalError) Name() string     { return "set_global_error" }
func (SetPreference) Name() string      { return "set_preference" }
func (ToggleChat) Name() string         { return "toggle_chat" }
func (AddChatMessage) Name() string     { return "add_chat_message" }
func (SetChatThinking) Name() string    { return "set_chat_thinking" }
func (SetChatModel) Name() string       { return "set_chat_model" }
func (MarkChatFailed) Name() string     { return "mark_chat_failed" }
func (SetAnalysisLoading) Name() string { return "set_analysis_loading" }
func (SetLeveragePoints) Name() string  { return "set_leverage_points" }
func (SetAnalysisError) Name() string   { return "set_analysis_error" }
func (SetParameterError) Name() string  { return "set_parameter_error" }
func (UpsertSimulation) Name() string   { return "upsert_simulation" }

func (SelectSystem) transition()       {}
func (ReplaceSystems) transition()     {}
func (UpdateSystem) transition()       {}
func (SetLoading) transition()         {}
func (SetGlobalError) transition()     {}
func (SetPreference) transition()      {}
func (ToggleChat) transition()         {}
func (AddChatMessage) transition()     {}
func (SetChatThinking) transition()    {}
func (SetChatModel) transition()       {}
func (MarkChatFailed) transition()     {}
func (SetAnalysisLoading) transition() {}
func (SetLeveragePoints) transition()  {}
func (SetAnalysisError) transition()   {}
func (SetParameterError) transition()  {}
func (UpsertSimulation) transition()   {}
