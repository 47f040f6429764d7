package server

import (
	"errors"
	"net/http"

	"github.com/germanamz/swchat/pkg/engine"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/sse"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	reply, err := s.engine.Chat(r.Context(), *req.UserInput)
	if err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "chat failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out := sse.NewWriter(w)
	w.WriteHeader(http.StatusOK)

	// Failures are already delivered to the client as an error event.
	_ = s.engine.Stream(r.Context(), *req.UserInput, func(ev engine.Event) error {
		return out.Send(ev)
	})
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var prefs engine.Preferences
	if err := decodeBody(w, r, &prefs); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out, err := s.engine.Suggest(r.Context(), prefs)
	if err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "suggestions failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, suggestionsResponse{Suggestions: out})
}

type statusResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ready(r.Context()); err != nil {
		logging.FromContext(r.Context()).WarnContext(r.Context(), "not ready", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}

type modelsResponse struct {
	Models   []inference.Model `json:"models"`
	Settings modelsSettings    `json:"settings"`
}

type modelsSettings struct {
	Env      string `json:"env"`
	Provider string `json:"provider"`
	Region   string `json:"region,omitempty"`
	ModelID  string `json:"model_id"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.engine.ListModels(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrModelsUnsupported) {
			status = http.StatusNotImplemented
		}
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "list models failed", "error", err)
		writeDetail(w, status, err.Error())
		return
	}
	if models == nil {
		models = []inference.Model{}
	}

	cfg := s.engine.Config()
	settings := modelsSettings{
		Env:      cfg.Env,
		Provider: cfg.Provider,
		ModelID:  cfg.Model(),
	}
	if cfg.Provider == engine.ProviderBedrock {
		settings.Region = cfg.Bedrock.Region
	}

	writeJSON(w, http.StatusOK, modelsResponse{Models: models, Settings: settings})
}
