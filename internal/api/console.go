package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chaostheorist/chaos/internal/app/console"
	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/store"
)

// mountConsole exposes the orchestration operations. Every mutating route
// answers with the resource it changed; GET /state returns the whole store.
func (s *Server) mountConsole(r chi.Router) {
	r.Get("/state", s.handleConsoleState)
	r.Post("/select", s.handleConsoleSelect)
	r.Post("/refresh", s.handleConsoleRefresh)
	r.Post("/parameters", s.handleConsoleParameter)
	r.Post("/analysis", s.handleConsoleAnalysis)
	r.Post("/interventions", s.handleConsoleIntervention)
	r.Post("/simulations", s.handleConsoleSimulation)
	r.Post("/chat", s.handleConsoleChat)
	r.Post("/chat/toggle", s.handleConsoleChatToggle)
	r.Put("/chat/model", s.handleConsoleChatModel)
	r.Put("/preferences", s.handleConsolePreference)
}

func (s *Server) handleConsoleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.console.Store().State())
}

func (s *Server) handleConsoleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SystemID string `json:"systemId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.console.SelectSystem(body.SystemID)
	writeJSON(w, http.StatusOK, map[string]string{"selectedSystemId": s.console.Store().State().SelectedSystemID})
}

func (s *Server) handleConsoleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PreferredSystemID string `json:"preferredSystemId"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	if err := s.console.LoadSystems(r.Context(), body.PreferredSystemID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	st := s.console.Store().State()
	writeJSON(w, http.StatusOK, map[string]any{
		"selectedSystemId": st.SelectedSystemID,
		"systems":          st.Systems,
	})
}

func (s *Server) handleConsoleParameter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SystemID    string       `json:"systemId"`
		ParameterID string       `json:"parameterId"`
		Value       domain.Value `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Value.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request", "value is required")
		return
	}
	sys, err := s.console.UpdateParameter(r.Context(), body.SystemID, body.ParameterID, body.Value)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sys)
}

func (s *Server) handleConsoleAnalysis(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SystemID string `json:"systemId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.console.FetchLeveragePoints(r.Context(), body.SystemID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.console.Store().State().Analyses[body.SystemID])
}

func (s *Server) handleConsoleIntervention(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SystemID        string `json:"systemId"`
		LeveragePointID string `json:"leveragePointId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := s.console.ProposeIntervention(body.SystemID, body.LeveragePointID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleConsoleSimulation(w http.ResponseWriter, r *http.Request) {
	var req domain.StartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	run, err := s.console.StartSimulation(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleConsoleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	msg, err := s.console.SendChat(r.Context(), body.Text)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleConsoleChatToggle(w http.ResponseWriter, r *http.Request) {
	s.console.ToggleChat()
	writeJSON(w, http.StatusOK, map[string]bool{"isOpen": s.console.Store().State().Chat.IsOpen})
}

func (s *Server) handleConsoleChatModel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Model domain.AIModel `json:"model"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.console.SetChatModel(body.Model); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.AIModel{"currentModel": body.Model})
}

func (s *Server) handleConsolePreference(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key   store.PreferenceKey `json:"key"`
		Value json.RawMessage     `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	value, err := console.DecodePreference(body.Key, string(body.Value))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", err.Error())
		return
	}
	if err := s.console.SetPreference(r.Context(), body.Key, value); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.console.Store().State().Preferences)
}
