package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophStudy/internal/models"
	handler "github.com/atinyakov/GophStudy/internal/server/handler/http"
	"github.com/atinyakov/GophStudy/internal/service"
)

// fakeStudyService records calls and returns preconfigured results.
type fakeStudyService struct {
	userID, deckID, cardID string
	limit                  int
	quality                models.Quality

	meta  models.ModeMetadata
	cards []models.StudyCard
	stats models.PerformanceStats
	err   error
}

func (f *fakeStudyService) ModeData(_ context.Context, userID, deckID string) (models.ModeMetadata, error) {
	f.userID, f.deckID = userID, deckID
	return f.meta, f.err
}

func (f *fakeStudyService) SetNewFlashcardsPerDay(_ context.Context, userID, deckID string, n int) error {
	f.userID, f.deckID, f.limit = userID, deckID, n
	return f.err
}

func (f *fakeStudyService) StartSession(_ context.Context, userID, deckID string) ([]models.StudyCard, error) {
	f.userID, f.deckID = userID, deckID
	return f.cards, f.err
}

func (f *fakeStudyService) SubmitReview(_ context.Context, userID, cardID, deckID string, q models.Quality) error {
	f.userID, f.cardID, f.deckID, f.quality = userID, cardID, deckID, q
	return f.err
}

func (f *fakeStudyService) PerformanceStats(_ context.Context, userID, deckID string) (models.PerformanceStats, error) {
	f.userID, f.deckID = userID, deckID
	return f.stats, f.err
}

func TestModeData(t *testing.T) {
	fake := &fakeStudyService{meta: models.ModeMetadata{NewFlashcardsPerDay: 5, KnowCardsCount: 2}}
	h := &handler.StudyHandler{StudyService: fake}

	w := httptest.NewRecorder()
	h.ModeData(w, httptest.NewRequest(http.MethodGet, "/api/mode-data?userId=u1&deckId=D1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"firstTime":false,"newFlashcardsPerDay":5,"knowCardsCount":2}`, w.Body.String())
	assert.Equal(t, "u1", fake.userID)
	assert.Equal(t, "D1", fake.deckID)
}

func TestMissingQueryParams(t *testing.T) {
	h := &handler.StudyHandler{StudyService: &fakeStudyService{}}
	tests := []struct {
		target string
		serve  http.HandlerFunc
	}{
		{"/api/mode-data", h.ModeData},
		{"/api/start-session?userId=u1", h.StartSession},
		{"/api/performance-stats?deckId=D1", h.PerformanceStats},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		tt.serve(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, tt.target)
	}
}

func TestSetNewFlashcardsPerDay(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "ok", body: `{"userId":"u1","deckId":"D1","newFlashcardsPerDay":5}`, wantStatus: http.StatusNoContent},
		{name: "bad json", body: `not-a-json`, wantStatus: http.StatusBadRequest},
		{name: "missing deck", body: `{"userId":"u1","newFlashcardsPerDay":5}`, wantStatus: http.StatusBadRequest},
		{name: "invalid limit", body: `{"userId":"u1","deckId":"D1","newFlashcardsPerDay":0}`, err: service.ErrInvalidLimit, wantStatus: http.StatusBadRequest},
		{name: "db failure", body: `{"userId":"u1","deckId":"D1","newFlashcardsPerDay":5}`, err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeStudyService{err: tt.err}
			h := &handler.StudyHandler{StudyService: fake}
			w := httptest.NewRecorder()
			h.SetNewFlashcardsPerDay(w, httptest.NewRequest(http.MethodPost, "/api/set-new-flashcards-per-day", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, 5, fake.limit)
				assert.Empty(t, w.Body.String())
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal error\n", w.Body.String())
			}
		})
	}
}

func TestStartSession(t *testing.T) {
	t.Run("cards", func(t *testing.T) {
		fake := &fakeStudyService{cards: []models.StudyCard{{ID: "c1", Front: "f", Back: "b"}}}
		h := &handler.StudyHandler{StudyService: fake}
		w := httptest.NewRecorder()
		h.StartSession(w, httptest.NewRequest(http.MethodGet, "/api/start-session?userId=u1&deckId=D1", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp handler.StartSessionResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, fake.cards, resp.Flashcards)
	})

	t.Run("no cards", func(t *testing.T) {
		h := &handler.StudyHandler{StudyService: &fakeStudyService{err: service.ErrNoCardsAvailable}}
		w := httptest.NewRecorder()
		h.StartSession(w, httptest.NewRequest(http.MethodGet, "/api/start-session?userId=u1&deckId=D1", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "no flashcards available\n", w.Body.String())
	})
}

func TestSubmitReview(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "ok", body: `{"userId":"u1","flashcardId":"c1","deckId":"D1","quality":4}`, wantStatus: http.StatusNoContent},
		{name: "missing card", body: `{"userId":"u1","deckId":"D1","quality":4}`, wantStatus: http.StatusBadRequest},
		{name: "invalid quality", body: `{"userId":"u1","flashcardId":"c1","deckId":"D1","quality":9}`, err: models.ErrInvalidQuality, wantStatus: http.StatusBadRequest},
		{name: "unknown card", body: `{"userId":"u1","flashcardId":"zz","deckId":"D1","quality":4}`, err: models.ErrCardNotFound, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeStudyService{err: tt.err}
			h := &handler.StudyHandler{StudyService: fake}
			w := httptest.NewRecorder()
			h.SubmitReview(w, httptest.NewRequest(http.MethodPost, "/api/submit-review", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, "c1", fake.cardID)
				assert.Equal(t, models.Quality(4), fake.quality)
			}
		})
	}
}

func TestPerformanceStats(t *testing.T) {
	fake := &fakeStudyService{stats: models.PerformanceStats{RetentionRate: 75, TotalAttempts: 4}}
	h := &handler.StudyHandler{StudyService: fake}
	w := httptest.NewRecorder()
	h.PerformanceStats(w, httptest.NewRequest(http.MethodGet, "/api/performance-stats?userId=u1&deckId=D1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"retentionRate":75,"totalAttempts":4}`, w.Body.String())
}
