// Package scheduler is the HTTP client for the remote scheduling service.
//
// The client is a thin typed boundary: it forwards values verbatim and maps
// HTTP outcomes onto TransientError, RemoteError and ErrNoCardsAvailable.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophStudy/internal/models"
)

const (
	apiModeData         = "/api/mode-data"
	apiSetNewPerDay     = "/api/set-new-flashcards-per-day"
	apiStartSession     = "/api/start-session"
	apiSubmitReview     = "/api/submit-review"
	apiPerformanceStats = "/api/performance-stats"
)

// DefaultTimeout is used by NewHTTPClient.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// Client talks to the scheduling service at BaseURL.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.Logger
}

// NewHTTPClient returns an *http.Client with the default timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// New returns a Client. A nil httpClient uses NewHTTPClient(DefaultTimeout); a nil log discards.
func New(httpClient *http.Client, baseURL string, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

type setNewPerDayRequest struct {
	UserID              string `json:"userId"`
	DeckID              string `json:"deckId"`
	NewFlashcardsPerDay int    `json:"newFlashcardsPerDay"`
}

type startSessionResponse struct {
	Flashcards []models.StudyCard `json:"flashcards"`
}

type submitReviewRequest struct {
	UserID      string         `json:"userId"`
	FlashcardID string         `json:"flashcardId"`
	DeckID      string         `json:"deckId"`
	Quality     models.Quality `json:"quality"`
}

// ModeData fetches the deck's mode metadata.
func (c *Client) ModeData(ctx context.Context, userID, deckID string) (models.ModeMetadata, error) {
	var out models.ModeMetadata
	err := c.do(ctx, "mode-data", http.MethodGet, apiModeData, query(userID, deckID), nil, &out)
	return out, err
}

// SetNewFlashcardsPerDay stores the daily new-card limit on the server.
func (c *Client) SetNewFlashcardsPerDay(ctx context.Context, userID, deckID string, n int) error {
	body := setNewPerDayRequest{UserID: userID, DeckID: deckID, NewFlashcardsPerDay: n}
	return c.do(ctx, "set-new-flashcards-per-day", http.MethodPost, apiSetNewPerDay, nil, body, nil)
}

// StartSession returns today's review queue.
// A 400 or 404 response is reported as ErrNoCardsAvailable.
func (c *Client) StartSession(ctx context.Context, userID, deckID string) ([]models.StudyCard, error) {
	var out startSessionResponse
	err := c.do(ctx, "start-session", http.MethodGet, apiStartSession, query(userID, deckID), nil, &out)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) && (re.Status == http.StatusBadRequest || re.Status == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoCardsAvailable, re.Body)
		}
		return nil, err
	}
	return out.Flashcards, nil
}

// SubmitReview sends one rating. The quality is forwarded unchanged.
func (c *Client) SubmitReview(ctx context.Context, userID, cardID, deckID string, q models.Quality) error {
	body := submitReviewRequest{UserID: userID, FlashcardID: cardID, DeckID: deckID, Quality: q}
	return c.do(ctx, "submit-review", http.MethodPost, apiSubmitReview, nil, body, nil)
}

// PerformanceStats fetches the server's post-session statistics.
func (c *Client) PerformanceStats(ctx context.Context, userID, deckID string) (models.PerformanceStats, error) {
	var out models.PerformanceStats
	err := c.do(ctx, "performance-stats", http.MethodGet, apiPerformanceStats, query(userID, deckID), nil, &out)
	return out, err
}

func query(userID, deckID string) url.Values {
	return url.Values{"userId": {userID}, "deckId": {deckID}}
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("scheduler call failed", zap.String("op", op), zap.Error(err))
		return &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("scheduler call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 500 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransientError{Op: op, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(data)))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransientError{Op: op, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return nil
}
