// Package api exposes the skill repository over a local HTTP surface so
// desktop shells and scripts can drive it without shelling out to the CLI.
// Every route delegates to the hub facade; the error taxonomy maps onto
// HTTP statuses so clients never string-match messages.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/skillshub/skillshub/pkg/hub"
	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/presenter"
	"github.com/skillshub/skillshub/pkg/skillerr"
)

// Server serves the skills HTTP API.
type Server struct {
	router *mux.Router
	hub    *hub.Service
	config *ServerConfig
	server *http.Server
}

// ServerConfig holds the listen configuration.
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// NewServer creates an API server over the hub.
func NewServer(service *hub.Service, config *ServerConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router: mux.NewRouter(),
		hub:    service,
		config: config,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/tools", s.handleToolStatus).Methods("GET")

	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/update", s.handleUpdateAll).Methods("POST")
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/skills/{id}", s.handleDeleteSkill).Methods("DELETE")
	api.HandleFunc("/skills/{id}/content", s.handleSkillContent).Methods("GET")
	api.HandleFunc("/skills/{id}/update", s.handleUpdateSkill).Methods("POST")
	api.HandleFunc("/skills/{id}/sync", s.handleSyncSkill).Methods("POST")
	api.HandleFunc("/skills/{id}/sync/{tool}", s.handleUnsyncSkill).Methods("DELETE")

	api.HandleFunc("/candidates/local", s.handleLocalCandidates).Methods("GET")
	api.HandleFunc("/candidates/git", s.handleGitCandidates).Methods("GET")
	api.HandleFunc("/install/local", s.handleInstallLocal).Methods("POST")
	api.HandleFunc("/install/git", s.handleInstallGit).Methods("POST")
	api.HandleFunc("/install/registry", s.handleInstallRegistry).Methods("POST")

	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods("PUT")

	api.HandleFunc("/onboarding", s.handleOnboardingPlan).Methods("GET")
	api.HandleFunc("/onboarding/adopt", s.handleAdopt).Methods("POST")

	api.HandleFunc("/cache/cleanup", s.handleCacheCleanup).Methods("POST")
	api.HandleFunc("/cache", s.handleCacheClear).Methods("DELETE")

	s.router.Use(s.loggingMiddleware)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleToolStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.hub.ToolStatus(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, status)
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.hub.ManagedSkills(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, skills)
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := s.hub.Skill(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, skill)
}

func (s *Server) handleSkillContent(w http.ResponseWriter, r *http.Request) {
	body, err := s.hub.ReadSkillContent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]string{"content": body})
}

func (s *Server) handleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.DeleteSkill(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]bool{"deleted": true})
}

func (s *Server) handleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	result, err := s.hub.UpdateSkill(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.hub.UpdateAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, result)
}

type syncRequest struct {
	Tool      string   `json:"tool"`
	Tools     []string `json:"tools,omitempty"`
	Overwrite bool     `json:"overwrite"`
}

func (s *Server) handleSyncSkill(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	id := mux.Vars(r)["id"]
	if len(req.Tools) > 0 {
		result, err := s.hub.SyncSkillToTools(r.Context(), id, req.Tools, req.Overwrite)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, result)
		return
	}

	skill, err := s.hub.SyncSkillToTool(r.Context(), hub.SyncRequest{
		SkillID:   id,
		Tool:      req.Tool,
		Overwrite: req.Overwrite,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, skill)
}

func (s *Server) handleUnsyncSkill(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.hub.UnsyncSkillFromTool(r.Context(), vars["id"], vars["tool"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]bool{"unsynced": true})
}

func (s *Server) handleLocalCandidates(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	candidates, err := s.hub.LocalCandidates(r.Context(), base)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, candidates)
}

func (s *Server) handleGitCandidates(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	candidates, err := s.hub.GitCandidates(r.Context(), repo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, candidates)
}

type installLocalRequest struct {
	SourcePath string `json:"source_path"`
	BasePath   string `json:"base_path,omitempty"`
	Subpath    string `json:"subpath,omitempty"`
	Name       string `json:"name,omitempty"`
}

func (s *Server) handleInstallLocal(w http.ResponseWriter, r *http.Request) {
	var req installLocalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.BasePath != "" {
		skill, err := s.hub.InstallLocalSelection(r.Context(), req.BasePath, req.Subpath, req.Name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, skill)
		return
	}

	skill, err := s.hub.InstallLocal(r.Context(), req.SourcePath, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, skill)
}

type installGitRequest struct {
	RepoURL  string   `json:"repo_url"`
	Subpath  string   `json:"subpath,omitempty"`
	Subpaths []string `json:"subpaths,omitempty"`
	Name     string   `json:"name,omitempty"`
}

func (s *Server) handleInstallGit(w http.ResponseWriter, r *http.Request) {
	var req installGitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	switch {
	case len(req.Subpaths) > 0:
		result, err := s.hub.InstallGitSelections(r.Context(), req.RepoURL, req.Subpaths)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, result)
	case req.Subpath != "":
		skill, err := s.hub.InstallGitSelection(r.Context(), req.RepoURL, req.Subpath, req.Name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, skill)
	default:
		skill, err := s.hub.InstallGit(r.Context(), req.RepoURL, req.Name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, skill)
	}
}

type installRegistryRequest struct {
	PackageRef string `json:"package_ref"`
	Name       string `json:"name,omitempty"`
}

func (s *Server) handleInstallRegistry(w http.ResponseWriter, r *http.Request) {
	var req installRegistryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	skill, err := s.hub.InstallRegistry(r.Context(), req.PackageRef, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, skill)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.hub.GetSettings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, settings)
}

// updateSettingsRequest carries a partial update: only the fields present
// in the request body are changed.
type updateSettingsRequest struct {
	CacheTTLSecs     *int    `json:"cache_ttl_secs,omitempty"`
	CacheCleanupDays *int    `json:"cache_cleanup_days,omitempty"`
	RepoPath         *string `json:"repo_path,omitempty"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx := r.Context()
	if req.CacheTTLSecs != nil {
		if err := s.hub.SetCacheTTL(ctx, time.Duration(*req.CacheTTLSecs)*time.Second); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.CacheCleanupDays != nil {
		if err := s.hub.SetCacheCleanupAge(ctx, time.Duration(*req.CacheCleanupDays)*24*time.Hour); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.RepoPath != nil {
		if err := s.hub.SetRepoPath(ctx, *req.RepoPath); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	settings, err := s.hub.GetSettings(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, settings)
}

func (s *Server) handleOnboardingPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.hub.OnboardingPlan(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, plan)
}

type adoptRequest struct {
	Name     string `json:"name,omitempty"`
	FromTool string `json:"from_tool,omitempty"`
	All      bool   `json:"all,omitempty"`
}

func (s *Server) handleAdopt(w http.ResponseWriter, r *http.Request) {
	var req adoptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.All {
		result, err := s.hub.AdoptAll(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, result)
		return
	}

	skill, result, err := s.hub.AdoptSkill(r.Context(), req.Name, req.FromTool)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"skill": skill, "sync": result})
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.hub.CacheCleanup(r.Context(), 7*24*time.Hour)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]int{"removed": removed})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.CacheClear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]bool{"cleared": true})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start),
		}).Info("HTTP request")
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
	}
}

// writeError maps the shared error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	switch {
	case skillerr.IsNotFound(err):
		status, kind = http.StatusNotFound, "not_found"
	case skillerr.IsConflict(err):
		status, kind = http.StatusConflict, "conflict"
	case skillerr.IsMultiSkills(err):
		status, kind = http.StatusConflict, "multi_skills"
	case skillerr.IsValidation(err):
		status, kind = http.StatusBadRequest, "validation"
	case skillerr.IsNetwork(err):
		status, kind = http.StatusBadGateway, "network"
	}

	logger.G(r.Context()).WithError(err).WithField("status", status).Warn("request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	}); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode error response")
	}
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	logger.G(r.Context()).WithError(err).Warn(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": message})
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	presenter.Info(fmt.Sprintf("Starting API server on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Stop closes the server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
