package control

import (
	"net/http"
	"time"

	"github.com/transcript-harvester/backend/internal/ingestor"
	"github.com/transcript-harvester/backend/internal/queue"
	"github.com/transcript-harvester/backend/internal/store"
	"github.com/transcript-harvester/backend/internal/workerpool"
)

// Dependencies aggregates the collaborators every control handler needs.
type Dependencies struct {
	Store          *store.Store
	Queue          *queue.Manager
	Ingestor       *ingestor.Ingestor
	Pool           *workerpool.Pool
	ShutdownBudget time.Duration
}

// RegisterRoutes wires the Control Plane's HTTP handlers into the provided
// ServeMux (spec section 6.1).
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	channels := ChannelHandler{Store: deps.Store, Queue: deps.Queue, Ingestor: deps.Ingestor}
	videos := VideoHandler{Store: deps.Store, Queue: deps.Queue}
	jobs := JobHandler{Store: deps.Store, Queue: deps.Queue, Pool: deps.Pool, ShutdownBudget: deps.ShutdownBudget}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /channels", channels.Create)
	mux.HandleFunc("GET /channels", channels.List)
	mux.HandleFunc("GET /channels/{id}", channels.Get)
	mux.HandleFunc("GET /channels/{id}/ingestion-status", channels.IngestionStatus)
	mux.HandleFunc("GET /channels/{id}/videos", channels.Videos)
	mux.HandleFunc("DELETE /channels/{id}", channels.Delete)

	mux.HandleFunc("GET /videos/queue/stats", videos.QueueStats)
	mux.HandleFunc("GET /videos/queue/failed", videos.QueueFailed)
	mux.HandleFunc("GET /videos", videos.List)
	mux.HandleFunc("GET /videos/{id}", videos.Get)
	mux.HandleFunc("POST /videos/{id}/retry", videos.Retry)
	mux.HandleFunc("DELETE /videos/{id}", videos.Delete)

	mux.HandleFunc("GET /jobs/status", jobs.Status)
	mux.HandleFunc("POST /jobs/start", jobs.Start)
	mux.HandleFunc("POST /jobs/pause", jobs.Pause)
	mux.HandleFunc("POST /jobs/resume", jobs.Resume)
	mux.HandleFunc("POST /jobs/stop", jobs.Stop)
	mux.HandleFunc("POST /jobs/reconcile", jobs.Reconcile)
	mux.HandleFunc("GET /jobs/settings", jobs.GetSettings)
	mux.HandleFunc("POST /jobs/settings", jobs.UpdateSettings)
	mux.HandleFunc("POST /jobs/cleanup", jobs.Cleanup)
	mux.HandleFunc("GET /jobs/logs", jobs.Logs)
	mux.HandleFunc("POST /jobs/workers/start", jobs.WorkersStart)
	mux.HandleFunc("POST /jobs/workers/stop", jobs.WorkersStop)
	mux.HandleFunc("POST /jobs/workers/restart", jobs.WorkersRestart)
	mux.HandleFunc("GET /jobs/workers/status", jobs.WorkersStatus)
}
