package control

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/queue"
	"github.com/transcript-harvester/backend/internal/store"
)

// VideoHandler implements the /videos endpoints (spec section 6.1).
type VideoHandler struct {
	Store *store.Store
	Queue *queue.Manager
}

// List handles GET /videos with status/channel_id/limit/offset filters.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := store.VideoFilter{
		Status: models.VideoStatus(q.Get("status")),
	}
	if raw := q.Get("channel_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid channel_id")
			return
		}
		filter.ChannelID = id
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	videos, err := h.Store.ListVideos(ctx, filter)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	respondJSON(ctx, w, http.StatusOK, videos)
}

// Get handles GET /videos/{id}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathInt64(r, "id")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	video, err := h.Store.GetVideo(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		respondError(ctx, w, http.StatusInternalServerError, "failed to load video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

type retryResponse struct {
	VideoID int64             `json:"video_id"`
	Status  models.VideoStatus `json:"status"`
}

// Retry handles POST /videos/{id}/retry.
func (h VideoHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathInt64(r, "id")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	if err := h.Queue.RetryFailed(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		if errors.Is(err, store.ErrConflict) {
			respondError(ctx, w, http.StatusBadRequest, "video is not in a failed state")
			return
		}
		respondError(ctx, w, http.StatusInternalServerError, "failed to retry video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, retryResponse{VideoID: id, Status: models.VideoPending})
}

// Delete handles DELETE /videos/{id}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathInt64(r, "id")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	if err := h.Store.DeleteVideo(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "video deleted"})
}

// QueueStats handles GET /videos/queue/stats.
func (h VideoHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.Queue.Stats(ctx, 0)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to compute queue stats")
		return
	}
	respondJSON(ctx, w, http.StatusOK, stats)
}

// QueueFailed handles GET /videos/queue/failed?limit=….
func (h VideoHandler) QueueFailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := store.VideoFilter{Status: models.VideoFailed}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	videos, err := h.Store.ListVideos(ctx, filter)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to list failed videos")
		return
	}
	respondJSON(ctx, w, http.StatusOK, videos)
}
