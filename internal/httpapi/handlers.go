package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/harborctl/sentinel/internal/types"
)

type executeAgentRequest struct {
	AgentID       string `json:"agent_id"`
	ProjectPath   string `json:"project_path"`
	Task          string `json:"task"`
	ModelOverride string `json:"model_override"`
}

func (s *Server) handleExecuteAgent(w http.ResponseWriter, r *http.Request) {
	var req executeAgentRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	runID, err := s.surface.ExecuteAgent(req.AgentID, req.ProjectPath, req.Task, req.ModelOverride)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

type executeSessionRequest struct {
	ProjectPath string `json:"project_path"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	ResumeToken string `json:"resume_token"`
}

func (s *Server) handleExecuteSession(w http.ResponseWriter, r *http.Request) {
	var req executeSessionRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	runID, err := s.surface.ExecuteSession(req.ProjectPath, req.Prompt, req.Model, req.ResumeToken)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

type continueSessionRequest struct {
	ProjectPath string `json:"project_path"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
}

func (s *Server) handleContinueSession(w http.ResponseWriter, r *http.Request) {
	var req continueSessionRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	runID, err := s.surface.ContinueSession(req.ProjectPath, req.Prompt, req.Model)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.surface.ListRunningRuns())
}

func (s *Server) handleGetLiveOutput(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	out, err := s.surface.GetLiveOutput(runID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"output": out})
}

func (s *Server) handleKillRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	ok := s.surface.KillRun(runID)
	s.respondJSON(w, http.StatusOK, map[string]bool{"killed": ok})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.surface.ListAgents()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, agents)
}

type agentRequest struct {
	Name         string            `json:"name"`
	Icon         string            `json:"icon"`
	SystemPrompt string            `json:"system_prompt"`
	DefaultTask  string            `json:"default_task"`
	Model        string            `json:"model"`
	Permissions  types.Permissions `json:"permissions"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	a, err := s.surface.CreateAgent(req.Name, req.Icon, req.SystemPrompt, req.DefaultTask, req.Model, req.Permissions)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req agentRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	a, err := s.surface.UpdateAgent(id, req.Name, req.Icon, req.SystemPrompt, req.DefaultTask, req.Model, req.Permissions)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.surface.DeleteAgent(id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListSandboxProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.surface.ListSandboxProfiles()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, profiles)
}

type sandboxProfileRequest struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

func (s *Server) handleCreateSandboxProfile(w http.ResponseWriter, r *http.Request) {
	var req sandboxProfileRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := s.surface.CreateSandboxProfile(req.Name, req.IsDefault)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleSetDefaultSandboxProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.surface.SetDefaultSandboxProfile(id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetPlatformCapabilities(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.surface.GetPlatformCapabilities())
}

func sessionQuery(r *http.Request) (projectID, projectPath string) {
	q := r.URL.Query()
	return q.Get("project_id"), q.Get("project_path")
}

func (s *Server) handleGetSessionTimeline(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	projectID, projectPath := sessionQuery(r)
	tl, err := s.surface.GetSessionTimeline(sessionID, projectID, projectPath)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tl)
}

type createCheckpointRequest struct {
	ProjectID   string `json:"project_id"`
	ProjectPath string `json:"project_path"`
	Description string `json:"description"`
}

func (s *Server) handleCreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req createCheckpointRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cp, err := s.surface.CreateCheckpoint(sessionID, req.ProjectID, req.ProjectPath, 0, req.Description)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleRestoreCheckpoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, projectPath := sessionQuery(r)
	report, err := s.surface.RestoreCheckpoint(vars["checkpoint"], vars["id"], projectID, projectPath)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleForkCheckpoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, projectPath := sessionQuery(r)
	cp, err := s.surface.ForkCheckpoint(vars["checkpoint"], vars["id"], projectID, projectPath)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleCheckpointSettings(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	projectID, projectPath := sessionQuery(r)

	if r.Method == http.MethodGet {
		auto, strategy, err := s.surface.GetCheckpointSettings(sessionID, projectID, projectPath)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"auto_enabled": auto, "strategy": strategy})
		return
	}

	var req struct {
		ProjectID   string                       `json:"project_id"`
		ProjectPath string                       `json:"project_path"`
		Auto        bool                         `json:"auto_enabled"`
		Strategy    types.AutoCheckpointStrategy `json:"strategy"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.surface.UpdateCheckpointSettings(sessionID, req.ProjectID, req.ProjectPath, req.Auto, req.Strategy); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// keepFromQuery parses the optional ?keep= query parameter shared by
// cleanup-style endpoints, defaulting to keeping the newest checkpoint.
func keepFromQuery(r *http.Request, fallback int) int {
	v := r.URL.Query().Get("keep")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) handleGetCheckpointDiff(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	projectID, _ := sessionQuery(r)
	q := r.URL.Query()
	diff, err := s.surface.GetCheckpointDiff(q.Get("a"), q.Get("b"), sessionID, projectID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, diff)
}

func (s *Server) handleCleanupCheckpoints(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	projectID, projectPath := sessionQuery(r)
	removed, err := s.surface.CleanupOldCheckpoints(sessionID, projectID, projectPath, keepFromQuery(r, 1))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
