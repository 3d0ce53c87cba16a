package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"github.com/intelligencedev/agentruntime/internal/agentrepo"
)

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var a agentrepo.Agent
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		respondError(w, badRequest(err))
		return
	}
	created, err := s.service.CreateAgent(r.Context(), a)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID != "" {
		agents, err := s.service.ListByOwner(r.Context(), ownerID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"agents": agents})
		return
	}
	agents, err := s.service.ListPublic(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetAgentByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var a agentrepo.Agent
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		respondError(w, badRequest(err))
		return
	}
	a.ID = r.PathValue("id")
	updated, err := s.service.UpdateAgent(r.Context(), a)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAgent(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, badRequest(err))
		return
	}
	sess, err := s.service.CreateSession(r.Context(), r.PathValue("id"), body.UserID, body.Title)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.GetSession(r.Context(), r.PathValue("sid"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(r.Context(), r.PathValue("sid")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	msgs, err := s.service.ListMessages(r.Context(), r.PathValue("sid"), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
		UserID  string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, badRequest(err))
		return
	}

	ctx := r.Context()
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "agent.send_message")
		defer span.End()
	}

	msg, err := s.service.SendMessage(ctx, r.PathValue("sid"), body.Content, body.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (s *Server) handleListAgentTools(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetAgentByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tools": a.Config.EnabledTools})
}

func (s *Server) handleAddAgentTool(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, badRequest(err))
		return
	}
	a, err := s.service.AddTool(r.Context(), r.PathValue("id"), body.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleListAgentSkills(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetAgentByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"skills": a.Config.EnabledSkills})
}

func (s *Server) handleAddAgentSkill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, badRequest(err))
		return
	}
	a, err := s.service.AddSkill(r.Context(), r.PathValue("id"), body.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleListAvailableTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"tools": s.availableTools()})
}

func (s *Server) handleListAvailableSkills(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"skills": s.availableSkills()})
}

func (s *Server) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	rt, err := s.service.StartRuntime(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runtime_id": rt.ID, "state": rt.State()})
}

func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StopRuntime(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetAgent(w http.ResponseWriter, r *http.Request) {
	rt, err := s.service.ResetRuntime(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runtime_id": rt.ID, "state": rt.State()})
}
