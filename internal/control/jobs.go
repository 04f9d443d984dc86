package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/queue"
	"github.com/transcript-harvester/backend/internal/store"
	"github.com/transcript-harvester/backend/internal/workerpool"
)

// JobHandler implements the /jobs endpoints (spec section 6.1): run
// control, settings, log retention, and worker pool management.
type JobHandler struct {
	Store          *store.Store
	Queue          *queue.Manager
	Pool           *workerpool.Pool
	ShutdownBudget time.Duration
}

type jobStatusResponse struct {
	Status        models.JobStatus  `json:"status"`
	ActiveWorkers int               `json:"active_workers"`
	QueueStats    models.QueueStats `json:"queue_stats"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	StoppedAt     *time.Time        `json:"stopped_at,omitempty"`
}

// Status handles GET /jobs/status.
func (h JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := h.Store.GetJob(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to load job status")
		return
	}
	stats, err := h.Queue.Stats(ctx, 0)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to compute queue stats")
		return
	}
	respondJSON(ctx, w, http.StatusOK, jobStatusResponse{
		Status:        job.Status,
		ActiveWorkers: job.ActiveWorkers,
		QueueStats:    stats,
		StartedAt:     job.StartedAt,
		StoppedAt:     job.StoppedAt,
	})
}

type startJobRequest struct {
	NumWorkers int `json:"num_workers"`
}

type jobActionResponse struct {
	Message    string            `json:"message"`
	Status     models.JobStatus  `json:"status"`
	QueueStats models.QueueStats `json:"queue_stats"`
}

func (h JobHandler) respondAction(w http.ResponseWriter, r *http.Request, message string) {
	ctx := r.Context()
	job, err := h.Store.GetJob(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to load job status")
		return
	}
	stats, err := h.Queue.Stats(ctx, 0)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to compute queue stats")
		return
	}
	respondJSON(ctx, w, http.StatusOK, jobActionResponse{Message: message, Status: job.Status, QueueStats: stats})
}

// Start handles POST /jobs/start.
func (h JobHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req startJobRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	n := req.NumWorkers
	if n <= 0 {
		setting, err := h.Store.GetSetting(ctx)
		if err != nil {
			respondError(ctx, w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		n = setting.MaxWorkers
	}

	if err := h.Pool.Start(ctx, n); err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to start worker pool")
		return
	}
	h.respondAction(w, r, "job started")
}

// Pause handles POST /jobs/pause.
func (h JobHandler) Pause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Store.SetJobPaused(ctx); err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to pause job")
		return
	}
	h.respondAction(w, r, "job paused")
}

// Resume handles POST /jobs/resume.
func (h JobHandler) Resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setting, err := h.Store.GetSetting(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if err := h.Pool.Start(ctx, setting.MaxWorkers); err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to resume worker pool")
		return
	}
	h.respondAction(w, r, "job resumed")
}

// Stop handles POST /jobs/stop.
func (h JobHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Pool.Stop(ctx, h.ShutdownBudget); err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to stop worker pool")
		return
	}
	h.respondAction(w, r, "job stopped")
}

type reconcileResponse struct {
	Message         string `json:"message"`
	CompletedVideos int    `json:"completed_videos"`
	ResetVideos     int    `json:"reset_videos"`
}

// Reconcile handles POST /jobs/reconcile.
func (h JobHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reset, err := h.Store.ResetProcessing(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to reset processing videos")
		return
	}
	completed, err := h.Store.Reconcile(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to reconcile videos")
		return
	}
	respondJSON(ctx, w, http.StatusOK, reconcileResponse{
		Message:         "reconciliation complete",
		CompletedVideos: completed,
		ResetVideos:     reset,
	})
}

// GetSettings handles GET /jobs/settings.
func (h JobHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setting, err := h.Store.GetSetting(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	respondJSON(ctx, w, http.StatusOK, setting)
}

// UpdateSettings handles POST /jobs/settings.
func (h JobHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var setting models.Setting
	if err := json.NewDecoder(r.Body).Decode(&setting); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Store.UpdateSetting(ctx, setting); err != nil {
		if errors.Is(err, store.ErrInvalidSetting) {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(ctx, w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	h.Pool.BackoffFactor = setting.BackoffFactor
	respondJSON(ctx, w, http.StatusOK, setting)
}

// Cleanup handles POST /jobs/cleanup?days=….
func (h JobHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid days")
			return
		}
		days = parsed
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := h.Store.DeleteLogsOlderThan(ctx, cutoff)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete old logs")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Logs handles GET /jobs/logs?limit=&level=&video_id=.
func (h JobHandler) Logs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := store.LogFilter{Level: models.LogLevel(q.Get("level"))}
	if raw := q.Get("video_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid video_id")
			return
		}
		filter.VideoID = id
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	logs, err := h.Store.ListLogs(ctx, filter)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	respondJSON(ctx, w, http.StatusOK, logs)
}

type workerActionRequest struct {
	NumWorkers int `json:"num_workers"`
}

// WorkersStart handles POST /jobs/workers/start.
func (h JobHandler) WorkersStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req workerActionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	n := req.NumWorkers
	if n <= 0 {
		setting, err := h.Store.GetSetting(ctx)
		if err != nil {
			respondError(ctx, w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		n = setting.MaxWorkers
	}
	if err := h.Pool.Start(ctx, n); err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to start workers")
		return
	}
	h.respondWorkerStatus(w, r)
}

// WorkersStop handles POST /jobs/workers/stop.
func (h JobHandler) WorkersStop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Pool.Stop(ctx, h.ShutdownBudget); err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to stop workers")
		return
	}
	h.respondWorkerStatus(w, r)
}

// WorkersRestart handles POST /jobs/workers/restart.
func (h JobHandler) WorkersRestart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req workerActionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	n := req.NumWorkers
	if n <= 0 {
		setting, err := h.Store.GetSetting(ctx)
		if err != nil {
			respondError(ctx, w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		n = setting.MaxWorkers
	}
	if err := h.Pool.Restart(ctx, n, h.ShutdownBudget); err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to restart workers")
		return
	}
	h.respondWorkerStatus(w, r)
}

// WorkersStatus handles GET /jobs/workers/status.
func (h JobHandler) WorkersStatus(w http.ResponseWriter, r *http.Request) {
	h.respondWorkerStatus(w, r)
}

func (h JobHandler) respondWorkerStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.Pool.Status(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to compute worker status")
		return
	}
	respondJSON(ctx, w, http.StatusOK, status)
}
