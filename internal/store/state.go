// Package store is the single source of truth of the console. State only
// changes by applying one Transition at a time through Apply.
package store

import (
	"time"

	"github.com/chaostheorist/chaos/internal/domain"
)

// LoadingKey names one resource kind tracked in the loading map.
type LoadingKey string

const (
	LoadingSystems     LoadingKey = "systems"
	LoadingSimulations LoadingKey = "simulations"
	LoadingScenarios   LoadingKey = "scenarios"
	LoadingAgents      LoadingKey = "agents"
	LoadingAgentTasks  LoadingKey = "agentTasks"
	LoadingTokenRails  LoadingKey = "tokenRails"
	LoadingIdentities  LoadingKey = "identities"
)

// LoadingKeys is the closed set of loading keys in display order.
var LoadingKeys = []LoadingKey{
	LoadingSystems, LoadingSimulations, LoadingScenarios, LoadingAgents,
	LoadingAgentTasks, LoadingTokenRails, LoadingIdentities,
}

// Valid reports whether k belongs to the closed key set.
func (k LoadingKey) Valid() bool {
	for _, key := range LoadingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// PreferenceKey names one user preference.
type PreferenceKey string

const (
	PrefDarkMode        PreferenceKey = "darkMode"
	PrefRefreshInterval PreferenceKey = "refreshIntervalSeconds"
	PrefNotifications   PreferenceKey = "notificationSettings"
)

// NotificationSettings toggles operator notifications.
type NotificationSettings struct {
	CriticalAlerts    bool `json:"criticalAlerts"`
	SimulationUpdates bool `json:"simulationUpdates"`
}

// Preferences are process-lifetime user settings.
type Preferences struct {
	DarkMode               bool                 `json:"darkMode"`
	RefreshIntervalSeconds int                  `json:"refreshIntervalSeconds"`
	NotificationSettings   NotificationSettings `json:"notificationSettings"`
}

// ChatState is the analyst conversation.
type ChatState struct {
	IsOpen       bool                 `json:"isOpen"`
	Messages     []domain.ChatMessage `json:"messages"`
	IsThinking   bool                 `json:"isThinking"`
	CurrentModel domain.AIModel       `json:"currentModel"`
	// Failed holds ids of user messages whose completion failed.
	Failed map[string]bool `json:"failed,omitempty"`
}

// Analysis is the leverage-point analysis of one system.
type Analysis struct {
	SystemID       string                 `json:"systemId"`
	LeveragePoints []domain.LeveragePoint `json:"leveragePoints"`
	Loading        bool                   `json:"loading"`
	Error          string                 `json:"error,omitempty"`
	UpdatedAt      time.Time              `json:"updatedAt,omitempty"`
}

// State is the whole application state. Treat values returned by the Store
// as read-only; Apply never mutates its input.
type State struct {
	// SelectedSystemID is empty when nothing is selected.
	SelectedSystemID string                           `json:"selectedSystemId"`
	Systems          []domain.ChaoticSystemDefinition `json:"systems"`
	Loading          map[LoadingKey]bool              `json:"isLoading"`
	// GlobalError is empty when there is no error.
	GlobalError     string                 `json:"globalError"`
	Preferences     Preferences            `json:"userPreferences"`
	Chat            ChatState              `json:"chat"`
	Analyses        map[string]Analysis    `json:"analyses"`
	ParameterErrors map[string]string      `json:"parameterErrors"`
	Simulations     []domain.SimulationRun `json:"activeSimulations"`
}

// Initial returns the state the console starts from.
func Initial() State {
	loading := make(map[LoadingKey]bool, len(LoadingKeys))
	for _, k := range LoadingKeys {
		loading[k] = false
	}
	return State{
		Systems: []domain.ChaoticSystemDefinition{},
		Loading: loading,
		Preferences: Preferences{
			RefreshIntervalSeconds: 60,
			NotificationSettings: NotificationSettings{
				CriticalAlerts:    true,
				SimulationUpdates: true,
			},
		},
		Chat: ChatState{
			Messages:     []domain.ChatMessage{},
			CurrentModel: domain.ModelGemini,
		},
		Analyses:        map[string]Analysis{},
		ParameterErrors: map[string]string{},
		Simulations:     []domain.SimulationRun{},
	}
}

// System returns the catalog entry with the given id.
func (s State) System(id string) (domain.ChaoticSystemDefinition, bool) {
	for _, sys := range s.Systems {
		if sys.ID == id {
			return sys, true
		}
	}
	return domain.ChaoticSystemDefinition{}, false
}

// Selected returns the selected system. It reports false when nothing is
// selected or the selected id is not in the catalog.
func (s State) Selected() (domain.ChaoticSystemDefinition, bool) {
	if s.SelectedSystemID == "" {
		return domain.ChaoticSystemDefinition{}, false
	}
	return s.System(s.SelectedSystemID)
}

// ParameterErrorKey builds the ParameterErrors key of one control.
func ParameterErrorKey(systemID, parameterID string) string {
	return systemID + "/" + parameterID
}
