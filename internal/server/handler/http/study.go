// Package http provides the HTTP handlers of the scheduling service.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GophStudy/internal/models"
	"github.com/atinyakov/GophStudy/internal/service"
)

// StudyService defines the scheduling operations required by the StudyHandler.
type StudyService interface {
	ModeData(ctx context.Context, userID, deckID string) (models.ModeMetadata, error)
	SetNewFlashcardsPerDay(ctx context.Context, userID, deckID string, n int) error
	StartSession(ctx context.Context, userID, deckID string) ([]models.StudyCard, error)
	SubmitReview(ctx context.Context, userID, cardID, deckID string, q models.Quality) error
	PerformanceStats(ctx context.Context, userID, deckID string) (models.PerformanceStats, error)
}

// StudyHandler serves the /api study endpoints.
type StudyHandler struct {
	StudyService StudyService
	Log          *zap.Logger
}

// SetNewPerDayRequest is the body of POST /api/set-new-flashcards-per-day.
type SetNewPerDayRequest struct {
	UserID              string `json:"userId"`
	DeckID              string `json:"deckId"`
	NewFlashcardsPerDay int    `json:"newFlashcardsPerDay"`
}

// SubmitReviewRequest is the body of POST /api/submit-review.
type SubmitReviewRequest struct {
	UserID      string         `json:"userId"`
	FlashcardID string         `json:"flashcardId"`
	DeckID      string         `json:"deckId"`
	Quality     models.Quality `json:"quality"`
}

// StartSessionResponse is the body returned by GET /api/start-session.
type StartSessionResponse struct {
	Flashcards []models.StudyCard `json:"flashcards"`
}

// ModeData handles GET /api/mode-data.
func (h *StudyHandler) ModeData(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := userDeck(w, r)
	if !ok {
		return
	}
	meta, err := h.StudyService.ModeData(r.Context(), userID, deckID)
	if err != nil {
		h.fail(w, "mode data", err)
		return
	}
	writeJSON(w, meta)
}

// SetNewFlashcardsPerDay handles POST /api/set-new-flashcards-per-day.
func (h *StudyHandler) SetNewFlashcardsPerDay(w http.ResponseWriter, r *http.Request) {
	var req SetNewPerDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.DeckID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.StudyService.SetNewFlashcardsPerDay(r.Context(), req.UserID, req.DeckID, req.NewFlashcardsPerDay); err != nil {
		h.fail(w, "set new flashcards per day", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartSession handles GET /api/start-session.
func (h *StudyHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := userDeck(w, r)
	if !ok {
		return
	}
	cards, err := h.StudyService.StartSession(r.Context(), userID, deckID)
	if err != nil {
		h.fail(w, "start session", err)
		return
	}
	writeJSON(w, StartSessionResponse{Flashcards: cards})
}

// SubmitReview handles POST /api/submit-review.
func (h *StudyHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.DeckID == "" || req.FlashcardID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.StudyService.SubmitReview(r.Context(), req.UserID, req.FlashcardID, req.DeckID, req.Quality); err != nil {
		h.fail(w, "submit review", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PerformanceStats handles GET /api/performance-stats.
func (h *StudyHandler) PerformanceStats(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := userDeck(w, r)
	if !ok {
		return
	}
	stats, err := h.StudyService.PerformanceStats(r.Context(), userID, deckID)
	if err != nil {
		h.fail(w, "performance stats", err)
		return
	}
	writeJSON(w, stats)
}

func userDeck(w http.ResponseWriter, r *http.Request) (userID, deckID string, ok bool) {
	q := r.URL.Query()
	userID, deckID = q.Get("userId"), q.Get("deckId")
	if userID == "" || deckID == "" {
		http.Error(w, "userId and deckId are required", http.StatusBadRequest)
		return "", "", false
	}
	return userID, deckID, true
}

// fail maps service errors onto status codes. Unexpected errors are logged and hidden.
func (h *StudyHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNoCardsAvailable), errors.Is(err, models.ErrCardNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidLimit), errors.Is(err, models.ErrInvalidQuality):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		if h.Log != nil {
			h.Log.Error(op+" failed", zap.Error(err))
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
