package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/transcript-harvester/backend/internal/ingestor"
	"github.com/transcript-harvester/backend/internal/logging"
	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/queue"
	"github.com/transcript-harvester/backend/internal/store"
)

// ChannelHandler implements the /channels endpoints (spec section 6.1).
type ChannelHandler struct {
	Store    *store.Store
	Queue    *queue.Manager
	Ingestor *ingestor.Ingestor
}

type createChannelsRequest struct {
	URL  string   `json:"url"`
	URLs []string `json:"urls"`
}

type createChannelsResponse struct {
	ChannelsCreated int `json:"channels_created"`
	VideosEnqueued  int `json:"videos_enqueued"`
	ChannelsSkipped int `json:"channels_skipped,omitempty"`
}

// Create handles POST /channels.
func (h ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req createChannelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	urls := req.URLs
	if req.URL != "" {
		urls = append(urls, req.URL)
	}
	if len(urls) == 0 {
		respondError(ctx, w, http.StatusUnprocessableEntity, "at least one url is required")
		return
	}

	ids, err := h.Ingestor.Ingest(ctx, urls)
	if err != nil {
		if errors.Is(err, ingestor.ErrInvalidChannelURL) {
			respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if errors.Is(err, ingestor.ErrIngestionInProgress) {
			respondError(ctx, w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("ingest channels failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to ingest channels")
		return
	}

	respondJSON(ctx, w, http.StatusOK, createChannelsResponse{ChannelsCreated: len(ids)})
}

type channelView struct {
	ID          int64  `json:"id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	TotalVideos int    `json:"total_videos"`
	Pending     int    `json:"pending"`
	Processing  int    `json:"processing"`
	Completed   int    `json:"completed"`
	Failed      int    `json:"failed"`
	CreatedAt   string `json:"created_at"`
}

func (h ChannelHandler) toView(r *http.Request, ch models.Channel) (channelView, error) {
	stats, err := h.Queue.Stats(r.Context(), ch.ID)
	if err != nil {
		return channelView{}, err
	}
	return channelView{
		ID:          ch.ID,
		URL:         ch.URL,
		Name:        ch.Name,
		TotalVideos: ch.TotalVideos,
		Pending:     stats.Pending,
		Processing:  stats.Processing,
		Completed:   stats.Completed,
		Failed:      stats.Failed,
		CreatedAt:   ch.CreatedAt.Format(timeLayout),
	}, nil
}

// List handles GET /channels.
func (h ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channels, err := h.Store.ListChannels(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to list channels")
		return
	}

	views := make([]channelView, 0, len(channels))
	for _, ch := range channels {
		view, err := h.toView(r, ch)
		if err != nil {
			respondError(ctx, w, http.StatusInternalServerError, "failed to compute channel stats")
			return
		}
		views = append(views, view)
	}
	respondJSON(ctx, w, http.StatusOK, views)
}

// Get handles GET /channels/{id}.
func (h ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathInt64(r, "id")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid channel id")
		return
	}

	ch, err := h.Store.GetChannel(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "channel not found")
			return
		}
		respondError(ctx, w, http.StatusInternalServerError, "failed to load channel")
		return
	}

	view, err := h.toView(r, ch)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to compute channel stats")
		return
	}
	respondJSON(ctx, w, http.StatusOK, view)
}

type ingestionStatusResponse struct {
	Status       string `json:"status"`
	VideosFound  int    `json:"videos_found"`
	VideosIngested int  `json:"videos_ingested"`
}

// IngestionStatus handles GET /channels/{id}/ingestion-status.
func (h ChannelHandler) IngestionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathInt64(r, "id")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid channel id")
		return
	}

	ch, err := h.Store.GetChannel(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "channel not found")
			return
		}
		respondError(ctx, w, http.StatusInternalServerError, "failed to load channel")
		return
	}

	status := models.IngestionCompleted
	switch ch.Name {
	case models.NameLoading:
		status = models.IngestionLoading
	case models.NameFailed:
		status = models.IngestionFailed
	}

	count, err := h.Store.CountVideosForChannel(ctx, id)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to count videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, ingestionStatusResponse{
		Status:         string(status),
		VideosFound:    count,
		VideosIngested: count,
	})
}

type channelVideosResponse struct {
	Videos       []models.Video `json:"videos"`
	Total        int            `json:"total"`
	StatusCounts models.QueueStats `json:"status_counts"`
}

// Videos handles GET /channels/{id}/videos.
func (h ChannelHandler) Videos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathInt64(r, "id")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid channel id")
		return
	}

	videos, err := h.Store.ListVideos(ctx, store.VideoFilter{ChannelID: id})
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	stats, err := h.Queue.Stats(ctx, id)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to compute channel stats")
		return
	}

	respondJSON(ctx, w, http.StatusOK, channelVideosResponse{
		Videos:       videos,
		Total:        stats.Total,
		StatusCounts: stats,
	})
}

// Delete handles DELETE /channels/{id}.
func (h ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathInt64(r, "id")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid channel id")
		return
	}

	if err := h.Store.DeleteChannel(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "channel not found")
			return
		}
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete channel")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "channel deleted"})
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
