package store

import (
	"maps"

	"github.com/chaostheorist/chaos/internal/domain"
)

// Apply returns the state that results from applying t to s. It is pure and
// total: s is never mutated, and a transition that does not change anything
// (unknown target, wrong preference type, nil) returns s as is.
func Apply(s State, t Transition) State {
	switch t := t.(type) {
	case SelectSystem:
		s.SelectedSystemID = t.ID
		return s

	case ReplaceSystems:
		s.Systems = append([]domain.ChaoticSystemDefinition{}, t.Systems...)
		return s

	case UpdateSystem:
		idx := indexOfSystem(s.Systems, t.System.ID)
		if idx < 0 {
			return s
		}
		systems := append([]domain.ChaoticSystemDefinition{}, s.Systems...)
		systems[idx] = t.System
		s.Systems = systems
		return s

	case SetLoading:
		if !t.Key.Valid() {
			return s
		}
		loading := maps.Clone(s.Loading)
		if loading == nil {
			loading = map[LoadingKey]bool{}
		}
		loading[t.Key] = t.Value
		s.Loading = loading
		return s

	case SetGlobalError:
		s.GlobalError = t.Message
		return s

	case SetPreference:
		prefs, ok := mergePreference(s.Preferences, t.Key, t.Value)
		if !ok {
			return s
		}
		s.Preferences = prefs
		return s

	case ToggleChat:
		s.Chat.IsOpen = !s.Chat.IsOpen
		return s

	case AddChatMessage:
		msgs := make([]domain.ChatMessage, len(s.Chat.Messages), len(s.Chat.Messages)+1)
		copy(msgs, s.Chat.Messages)
		s.Chat.Messages = append(msgs, t.Message)
		return s

	case SetChatThinking:
		s.Chat.IsThinking = t.Thinking
		return s

	case SetChatModel:
		s.Chat.CurrentModel = t.Model
		return s

	case MarkChatFailed:
		failed := maps.Clone(s.Chat.Failed)
		if failed == nil {
			failed = map[string]bool{}
		}
		failed[t.MessageID] = true
		s.Chat.Failed = failed
		return s

	case SetAnalysisLoading:
		a := s.Analyses[t.SystemID]
		a.SystemID = t.SystemID
		a.Loading = t.Loading
		if t.Loading {
			a.Error = ""
		}
		s.Analyses = withAnalysis(s.Analyses, a)
		return s

	case SetLeveragePoints:
		a := Analysis{
			SystemID:       t.SystemID,
			LeveragePoints: append([]domain.LeveragePoint{}, t.Points...),
			Loading:        s.Analyses[t.SystemID].Loading,
			UpdatedAt:      t.At,
		}
		s.Analyses = withAnalysis(s.Analyses, a)
		return s

	case SetAnalysisError:
		a := s.Analyses[t.SystemID]
		a.SystemID = t.SystemID
		a.Error = t.Message
		s.Analyses = withAnalysis(s.Analyses, a)
		return s

	case SetParameterError:
		key := ParameterErrorKey(t.SystemID, t.ParameterID)
		if _, exists := s.ParameterErrors[key]; t.Message == "" && !exists {
			return s
		}
		errs := maps.Clone(s.ParameterErrors)
		if errs == nil {
			errs = map[string]string{}
		}
		if t.Message == "" {
			delete(errs, key)
		} else {
			errs[key] = t.Message
		}
		s.ParameterErrors = errs
		return s

	case UpsertSimulation:
		runs := append([]domain.SimulationRun{}, s.Simulations...)
		for i := range runs {
			if runs[i].ID == t.Run.ID {
				runs[i] = t.Run
				s.Simulations = runs
				return s
			}
		}
		s.Simulations = append(runs, t.Run)
		return s
	}
	return s
}

func indexOfSystem(systems []domain.ChaoticSystemDefinition, id string) int {
	for i := range systems {
		if systems[i].ID == id {
			return i
		}
	}
	return -1
}

func withAnalysis(in map[string]Analysis, a Analysis) map[string]Analysis {
	out := maps.Clone(in)
	if out == nil {
		out = map[string]Analysis{}
	}
	out[a.SystemID] = a
	return out
}

// mergePreference sets one preference key. JSON callers hand numbers over
// as float64, so whole floats are accepted for the refresh interval.
func mergePreference(p Preferences, key PreferenceKey, value any) (Preferences, bool) {
	switch key {
	case PrefDarkMode:
		b, ok := value.(bool)
		if !ok {
			return p, false
		}
		p.DarkMode = b
	case PrefRefreshInterval:
		var n int
		switch v := value.(type) {
		case int:
			n = v
		case int64:
			n = int(v)
		case float64:
			if v != float64(int(v)) {
				return p, false
			}
			n = int(v)
		default:
			return p, false
		}
		if n <= 0 {
			return p, false
		}
		p.RefreshIntervalSeconds = n
	case PrefNotifications:
		ns, ok := value.(NotificationSettings)
		if !ok {
			return p, false
		}
		p.NotificationSettings = ns
	default:
		return p, false
	}
	return p, true
}

// PreferenceAccepted reports whether value has an acceptable type for key.
func PreferenceAccepted(key PreferenceKey, value any) bool {
	_, ok := mergePreference(Preferences{}, key, value)
	return ok
}
