package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/polish"
	"github.com/jonathan/audioscribe/internal/types"
)

// ProjectCreateRequest registers a new project with its pre-split chunk
// manifest.
type ProjectCreateRequest struct {
	OriginalFilename string             `json:"original_filename"`
	Mode             string             `json:"mode,omitempty"`
	StyleConfig      json.RawMessage    `json:"style_config,omitempty"`
	Chunks           []types.ChunkInput `json:"chunks"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OriginalFilename == "" {
		s.errorResponse(w, http.StatusBadRequest, "original_filename is required")
		return
	}
	if len(req.Chunks) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "chunks manifest is required")
		return
	}
	for i, chunk := range req.Chunks {
		if chunk.Index != i {
			s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("chunk manifest out of order at index %d", i))
			return
		}
		if chunk.FilePath == "" {
			s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("chunk %d is missing file_path", i))
			return
		}
	}

	mode := types.ModeSolo
	if req.Mode != "" {
		switch types.ProcessingMode(req.Mode) {
		case types.ModeSolo, types.ModeManual:
			mode = types.ProcessingMode(req.Mode)
		default:
			s.errorResponse(w, http.StatusBadRequest, "mode must be SOLO or MANUAL")
			return
		}
	}

	// Reject malformed style payloads at ingestion, not at the first
	// refinement call.
	if _, err := polish.ParseStyleConfig(req.StyleConfig); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	project, err := s.store.CreateProject(ctx, req.OriginalFilename, mode, req.StyleConfig)
	if err != nil {
		s.log.WithError(err).Error("failed to create project")
		s.errorResponse(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	if err := s.store.CreateChunks(ctx, project.ID, req.Chunks); err != nil {
		s.log.WithError(err).Error("failed to register chunks")
		s.errorResponse(w, http.StatusInternalServerError, "failed to register chunks")
		return
	}

	// Walk the early checkpoints so the project lands at CHUNKED, ready to
	// start.
	for _, cp := range []checkpoint.Checkpoint{checkpoint.Compressed, checkpoint.Chunked} {
		if err := s.store.SetCheckpoint(ctx, project.ID, cp); err != nil {
			s.log.WithError(err).Error("failed to advance checkpoint")
			s.errorResponse(w, http.StatusInternalServerError, "failed to advance checkpoint")
			return
		}
	}
	project.Checkpoint = checkpoint.Chunked

	s.jsonResponse(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), 0)
	if err != nil {
		s.log.WithError(err).Error("failed to list projects")
		s.errorResponse(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []types.Project{}
	}
	s.jsonResponse(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		s.log.WithError(err).Error("failed to get project")
		s.errorResponse(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		s.errorResponse(w, http.StatusNotFound, "project not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	// Stop any active run before dropping the records.
	if err := s.controller.Abort(r.Context(), projectID); err != nil {
		s.controlError(w, err)
		return
	}
	if err := s.store.DeleteProject(r.Context(), projectID); err != nil {
		s.log.WithError(err).Error("failed to delete project")
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.controller.Start(r.Context(), projectID); err != nil {
		s.controlError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.controller.Pause(projectID); err != nil {
		s.controlError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "pausing"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.controller.Resume(r.Context(), projectID); err != nil {
		s.controlError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "resumed"})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.controller.Abort(r.Context(), projectID); err != nil {
		s.controlError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "aborted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	status, err := s.controller.Status(r.Context(), projectID)
	if err != nil {
		s.controlError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, status)
}

func (s *Server) handleMerged(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	doc, err := s.store.GetFinalDocument(r.Context(), projectID)
	if err != nil {
		s.log.WithError(err).Error("failed to get final document")
		s.errorResponse(w, http.StatusInternalServerError, "failed to get final document")
		return
	}
	if doc == nil {
		s.errorResponse(w, http.StatusNotFound, "project has no merged transcript yet")
		return
	}
	s.jsonResponse(w, http.StatusOK, doc)
}

func (s *Server) handleRetryChunk(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	chunkID, err := uuid.Parse(r.PathValue("chunk_id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid chunk ID")
		return
	}
	if err := s.controller.RetryChunk(r.Context(), projectID, chunkID); err != nil {
		s.controlError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "retrying"})
}

// pathUUID parses the {id} path segment, writing a 400 on failure.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid project ID")
		return uuid.Nil, false
	}
	return id, true
}

// controlError maps controller errors onto HTTP responses.
func (s *Server) controlError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("controller error")
		s.errorResponse(w, status, "internal error")
		return
	}
	s.errorResponse(w, status, err.Error())
}
