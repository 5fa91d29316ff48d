package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"podpress/internal/episode"
	"podpress/pkg/logger"
	"podpress/pkg/types"
)

// AudioProcessor runs post-production for one episode.
type AudioProcessor interface {
	ProcessEpisodeAudio(ctx context.Context, episodeID string) (string, error)
}

// EpisodeHandler handles episode-related API endpoints
type EpisodeHandler struct {
	store     *episode.Store
	processor AudioProcessor
	log       *logger.Logger
}

// NewEpisodeHandler creates a new episode handler
func NewEpisodeHandler(store *episode.Store, processor AudioProcessor, log *logger.Logger) *EpisodeHandler {
	return &EpisodeHandler{
		store:     store,
		processor: processor,
		log:       log,
	}
}

type createEpisodeRequest struct {
	Title              string `json:"title"`
	AudioURL           string `json:"audio_url"`
	BackgroundMusicURL string `json:"background_music_url"`
}

// CreateEpisode handles POST /api/v1/episodes
func (h *EpisodeHandler) CreateEpisode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AudioURL == "" {
		respondError(w, "audio_url is required", http.StatusBadRequest)
		return
	}

	ep := &types.Episode{
		ID:                 uuid.New().String(),
		Title:              req.Title,
		AudioURL:           req.AudioURL,
		BackgroundMusicURL: req.BackgroundMusicURL,
		Status:             types.EpisodeQueued,
		ProcessingStatus:   types.ProcessingPending,
	}

	if err := h.store.Create(r.Context(), ep); err != nil {
		h.log.Error("failed to create episode", zap.Error(err))
		respondError(w, "Failed to create episode", http.StatusInternalServerError)
		return
	}

	respondJSON(w, ep, http.StatusCreated)
}

// GetEpisode handles GET /api/v1/episodes/{id}
func (h *EpisodeHandler) GetEpisode(w http.ResponseWriter, r *http.Request) {
	id := episodeID(r.URL.Path)
	if id == "" {
		respondError(w, "Episode ID required", http.StatusBadRequest)
		return
	}

	ep, err := h.store.Get(r.Context(), id)
	if errors.Is(err, episode.ErrNotFound) {
		respondError(w, "Episode not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("failed to load episode", zap.String("episode_id", id), zap.Error(err))
		respondError(w, "Failed to load episode", http.StatusInternalServerError)
		return
	}

	respondJSON(w, ep, http.StatusOK)
}

// ProcessEpisode handles POST /api/v1/episodes/{id}/process
func (h *EpisodeHandler) ProcessEpisode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := episodeID(r.URL.Path)
	if id == "" {
		respondError(w, "Episode ID required", http.StatusBadRequest)
		return
	}

	url, err := h.processor.ProcessEpisodeAudio(r.Context(), id)
	switch {
	case errors.Is(err, episode.ErrNotFound):
		respondError(w, "Episode not found", http.StatusNotFound)
	case errors.Is(err, episode.ErrAlreadyProcessing):
		respondError(w, "Episode is already being processed", http.StatusConflict)
	case err != nil:
		h.log.Error("episode processing failed", zap.String("episode_id", id), zap.Error(err))
		respondError(w, err.Error(), http.StatusBadGateway)
	default:
		respondJSON(w, map[string]string{"processed_audio_url": url}, http.StatusOK)
	}
}

// episodeID extracts the id from /api/v1/episodes/{id}[/process]
func episodeID(path string) string {
	path = strings.TrimPrefix(path, "/api/v1/episodes/")
	path = strings.TrimSuffix(path, "/process")
	return strings.Trim(path, "/")
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
