package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/xjson"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.deps.Health.GetHealth()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) decodeWorkflow(r *http.Request) (*workflowPayload, error) {
	var payload workflowPayload
	if err := xjson.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode workflow: %v: %w", err, domain.ErrInvalidInput)
	}
	return &payload, nil
}

func (s *Server) newID() string {
	if s.deps.NewID != nil {
		return s.deps.NewID()
	}
	return uuid.NewString()
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Workflows.ListWorkflows(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]workflowResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toWorkflowResponse(record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	payload, err := s.decodeWorkflow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := payload.ID
	if id == "" {
		id = s.newID()
	}
	record := &domain.WorkflowRecord{
		ID:          id,
		Name:        payload.Name,
		Description: payload.Description,
		Graph:       payload.graph(id),
	}
	if err := s.deps.Workflows.SaveWorkflow(r.Context(), record); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkflowResponse(record))
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	record, err := s.deps.Workflows.GetWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkflowResponse(record))
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	record, err := s.deps.Workflows.GetWorkflow(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload, err := s.decodeWorkflow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	record.Name = payload.Name
	record.Description = payload.Description
	record.Graph = payload.graph(id)
	if err := s.deps.Workflows.SaveWorkflow(r.Context(), record); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkflowResponse(record))
}

// Deleting a workflow that does not exist is not an error.
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Workflows.DeleteWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil && !domain.IsNotFound(err) {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	payload, err := s.decodeWorkflow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	graph := payload.graph(payload.ID)
	plan, err := s.deps.Compiler.Compile(&graph)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := validateResponse{Valid: true, Steps: make([]string, 0, len(plan.Steps))}
	for _, step := range plan.Steps {
		resp.Steps = append(resp.Steps, step.ID)
		if _, ok := plan.Override(step.ID); ok {
			resp.DebugOverrides = append(resp.DebugOverrides, step.ID)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	record, err := s.deps.Workflows.GetWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	graph := record.Graph
	graph.ID = record.ID
	graph.Name = record.Name
	graph.Description = record.Description

	runID, err := s.deps.Manager.Start(r.Context(), &graph)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{RunID: runID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if run.Logs == nil {
		run.Logs = []string{}
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if s.deps.Timelines == nil {
		s.writeError(w, r, domain.NewNotFoundError("timeline", chi.URLParam(r, "runID")))
		return
	}
	events, err := s.deps.Timelines.GetTimeline(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.DebugEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.deps.Manager.Cancel(runID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID, "status": "cancelling"})
}

// handleLogs streams a run's log as server-sent events: one data frame per
// line, then a closing "end" event. Unknown runs get an empty stream.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Live runs can outlast the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	runID := chi.URLParam(r, "runID")
	for line, err := range s.deps.Manager.Stream(r.Context(), runID) {
		if err != nil {
			if r.Context().Err() == nil {
				s.logger.Warn("log stream ended early", "run_id", runID, "error", err)
			}
			return
		}
		data, err := xjson.Marshal(logMessage{Message: line})
		if err != nil {
			s.logger.Error("failed to encode log line", "run_id", runID, "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}

	fmt.Fprint(w, "event: end\ndata: {}\n\n")
	flusher.Flush()
}
