package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophStudy/internal/models"
)

// roundTripperFunc lets a plain function stand in for the HTTP transport.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripperFunc) *Client {
	return New(&http.Client{Transport: fn, Timeout: time.Second}, "http://example.com/", nil)
}

func jsonResponse(status int, v any) *http.Response {
	b, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func textResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestModeData(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/api/mode-data", req.URL.Path)
		assert.Equal(t, "u1", req.URL.Query().Get("userId"))
		assert.Equal(t, "D1", req.URL.Query().Get("deckId"))
		return jsonResponse(http.StatusOK, map[string]any{
			"firstTime":           false,
			"newFlashcardsPerDay": 10,
			"knowCardsCount":      42,
		}), nil
	})

	meta, err := c.ModeData(context.Background(), "u1", "D1")
	require.NoError(t, err)
	assert.Equal(t, models.ModeMetadata{FirstTime: false, NewFlashcardsPerDay: 10, KnowCardsCount: 42}, meta)
}

func TestSetNewFlashcardsPerDay(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "http://example.com/api/set-new-flashcards-per-day", req.URL.String())
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, map[string]any{"userId": "u1", "deckId": "D1", "newFlashcardsPerDay": float64(5)}, body)
		return textResponse(http.StatusNoContent, ""), nil
	})

	require.NoError(t, c.SetNewFlashcardsPerDay(context.Background(), "u1", "D1", 5))
}

func TestStartSession(t *testing.T) {
	order := 2
	want := []models.StudyCard{
		{ID: "c1", Front: "hola", Back: "hello"},
		{ID: "c2", Front: "adios", Back: "bye", Order: &order},
	}
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/api/start-session", req.URL.Path)
		return jsonResponse(http.StatusOK, map[string]any{"flashcards": want}), nil
	})

	got, err := c.StartSession(context.Background(), "u1", "D1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStartSession_NoCards(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			c := newTestClient(func(req *http.Request) (*http.Response, error) {
				return textResponse(status, "no flashcards available\n"), nil
			})
			_, err := c.StartSession(context.Background(), "u1", "D1")
			assert.ErrorIs(t, err, ErrNoCardsAvailable)
			assert.False(t, IsTransient(err))
		})
	}
}

func TestSubmitReview_ForwardsQualityVerbatim(t *testing.T) {
	for q := models.QualityMin; q <= models.QualityMax; q++ {
		c := newTestClient(func(req *http.Request) (*http.Response, error) {
			var body submitReviewRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, submitReviewRequest{UserID: "u1", FlashcardID: "c9", DeckID: "D1", Quality: q}, body)
			return textResponse(http.StatusNoContent, ""), nil
		})
		require.NoError(t, c.SubmitReview(context.Background(), "u1", "c9", "D1", q))
	}
}

func TestPerformanceStats(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/api/performance-stats", req.URL.Path)
		return jsonResponse(http.StatusOK, map[string]any{"retentionRate": 66.66666666666667, "totalAttempts": 3}), nil
	})

	stats, err := c.PerformanceStats(context.Background(), "u1", "D1")
	require.NoError(t, err)
	assert.Equal(t, models.PerformanceStats{RetentionRate: 66.66666666666667, TotalAttempts: 3}, stats)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		rt            roundTripperFunc
		wantTransient bool
		wantRemote    int
	}{
		{
			name: "network error",
			rt: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("network down")
			},
			wantTransient: true,
		},
		{
			name: "server error",
			rt: func(*http.Request) (*http.Response, error) {
				return textResponse(http.StatusBadGateway, "upstream"), nil
			},
			wantTransient: true,
		},
		{
			name: "invalid json",
			rt: func(*http.Request) (*http.Response, error) {
				return textResponse(http.StatusOK, "not-json"), nil
			},
			wantTransient: true,
		},
		{
			name: "conflict",
			rt: func(*http.Request) (*http.Response, error) {
				return textResponse(http.StatusConflict, "nope"), nil
			},
			wantRemote: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(tt.rt).ModeData(context.Background(), "u1", "D1")
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, IsTransient(err))

			var re *RemoteError
			if tt.wantRemote != 0 {
				require.ErrorAs(t, err, &re)
				assert.Equal(t, tt.wantRemote, re.Status)
				assert.Equal(t, "nope", re.Body)
			} else {
				assert.False(t, errors.As(err, &re))
			}
		})
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer ts.Close()

	c := New(&http.Client{Timeout: 50 * time.Millisecond}, ts.URL, nil)
	err := c.SubmitReview(context.Background(), "u1", "c1", "D1", 3)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestAgainstHTTPTestServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/start-session":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"flashcards": []map[string]string{{"id": "c1", "front": "f", "back": "b"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := New(nil, ts.URL, nil)
	cards, err := c.StartSession(context.Background(), "u1", "D1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "c1", cards[0].ID)
}
