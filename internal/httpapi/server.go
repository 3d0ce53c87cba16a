// Package httpapi exposes the AgentService over a stdlib net/http REST
// surface plus one Server-Sent Events streaming endpoint.
package httpapi

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/intelligencedev/agentruntime/internal/service"
	"github.com/intelligencedev/agentruntime/internal/skills"
	"github.com/intelligencedev/agentruntime/internal/tools"
)

// Server wires the HTTP surface to the AgentService.
type Server struct {
	service    *service.Service
	tracer     trace.Tracer
	mux        *http.ServeMux
	handler    http.Handler
	baseTools  tools.Registry
	baseSkills skills.Registry
}

// NewServer builds the Server and registers all routes. baseTools and
// baseSkills back the tools/skills discovery endpoints; they are the same
// registries the runtime manager resolves per-agent subsets from. When
// tracer is non-nil, every request is wrapped with otelhttp middleware for
// request tracing; a nil tracer (tracing disabled) skips instrumentation
// entirely rather than emitting to a no-op provider.
func NewServer(svc *service.Service, tracer trace.Tracer, baseTools tools.Registry, baseSkills skills.Registry) *Server {
	s := &Server{service: svc, tracer: tracer, mux: http.NewServeMux(), baseTools: baseTools, baseSkills: baseSkills}
	s.registerRoutes()
	if tracer != nil {
		s.handler = otelhttp.NewHandler(s.mux, "agentd")
	} else {
		s.handler = s.mux
	}
	return s
}

func (s *Server) availableTools() []tools.Schema {
	if s.baseTools == nil {
		return nil
	}
	return s.baseTools.Schemas()
}

func (s *Server) availableSkills() []skills.Metadata {
	if s.baseSkills == nil {
		return nil
	}
	return s.baseSkills.List()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /agents", s.handleCreateAgent)
	s.mux.HandleFunc("GET /agents", s.handleListAgents)
	s.mux.HandleFunc("GET /agents/{id}", s.handleGetAgent)
	s.mux.HandleFunc("PUT /agents/{id}", s.handleUpdateAgent)
	s.mux.HandleFunc("DELETE /agents/{id}", s.handleDeleteAgent)

	s.mux.HandleFunc("POST /agents/{id}/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /agents/{id}/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /agents/sessions/{sid}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /agents/sessions/{sid}", s.handleDeleteSession)

	s.mux.HandleFunc("GET /agents/sessions/{sid}/messages", s.handleListMessages)
	s.mux.HandleFunc("POST /agents/sessions/{sid}/messages", s.handleSendMessage)
	s.mux.HandleFunc("GET /agents/sessions/{sid}/stream", s.handleStreamMessage)

	s.mux.HandleFunc("GET /agents/{id}/tools", s.handleListAgentTools)
	s.mux.HandleFunc("POST /agents/{id}/tools", s.handleAddAgentTool)
	s.mux.HandleFunc("GET /agents/{id}/skills", s.handleListAgentSkills)
	s.mux.HandleFunc("POST /agents/{id}/skills", s.handleAddAgentSkill)

	s.mux.HandleFunc("GET /agents/tools/available", s.handleListAvailableTools)
	s.mux.HandleFunc("GET /agents/skills/available", s.handleListAvailableSkills)

	s.mux.HandleFunc("POST /agents/{id}/start", s.handleStartAgent)
	s.mux.HandleFunc("POST /agents/{id}/stop", s.handleStopAgent)
	s.mux.HandleFunc("POST /agents/{id}/reset", s.handleResetAgent)
}
