package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/GophStudy/internal/client/cache"
	"github.com/atinyakov/GophStudy/internal/client/scheduler"
	"github.com/atinyakov/GophStudy/internal/models"
)

// Controller runs the study session of one deck for one user.
// Handle may be called from several goroutines; at most one remote-bound
// operation runs at a time and the rest fail fast with ErrBusy.
type Controller struct {
	userID string
	deckID string
	remote Remote
	cache  *cache.Cache
	agg    Aggregator
	log    *zap.Logger
	newID  func() string

	op       sync.Mutex
	inFlight atomic.Bool

	mu         sync.Mutex
	state      State
	suspended  bool
	queue      []models.StudyCard
	cursor     int
	attempts   int
	sessionID  string
	stats      *models.PerformanceStats
	notice     *models.ModeMetadata
	suggested  int
	loadFailed bool
	pending    bool // last rating confirmed, completion not yet recorded
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithIDGenerator overrides how session ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// NewController returns an idle controller for deckID.
func NewController(userID, deckID string, remote Remote, cc *cache.Cache, opts ...Option) *Controller {
	c := &Controller{
		userID: userID,
		deckID: deckID,
		remote: remote,
		cache:  cc,
		agg:    NewAggregator(remote),
		log:    zap.NewNop(),
		newID:  uuid.NewString,
		state:  StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With(zap.String("deck", deckID))
	return c
}

// DeckID returns the deck this controller drives.
func (c *Controller) DeckID() string { return c.deckID }

// Handle applies ev and returns the resulting snapshot.
// The snapshot is returned even when err is non-nil.
func (c *Controller) Handle(ctx context.Context, ev Event) (Snapshot, error) {
	var err error
	switch e := ev.(type) {
	case EnterTab:
		err = c.enterTab(ctx)
	case LeaveTab:
		c.leaveTab()
	case ConfirmSetup:
		err = c.confirmSetup(ctx, e.Limit)
	case Rate:
		err = c.applyRating(ctx, e.Quality)
	case Retry:
		err = c.retry(ctx)
	case ChangeLimit:
		err = c.changeLimit(ctx, e.Limit)
	default:
		err = fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
	return c.Snapshot(), err
}

// Snapshot returns the current read model.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		DeckID:         c.deckID,
		State:          c.state,
		SessionID:      c.sessionID,
		Cursor:         c.cursor,
		QueueLen:       len(c.queue),
		SuggestedLimit: c.suggested,
		Busy:           c.inFlight.Load(),
	}
	if c.suspended {
		s.State = StateIdle
	}
	if c.stats != nil {
		st := *c.stats
		s.Stats = &st
	}
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	// Card and NeedsRetry follow the reported state, not the suspended one.
	if s.State == StateReviewing && c.cursor < len(c.queue) {
		card := c.queue[c.cursor]
		s.Card = &card
	}
	s.NeedsRetry = s.State == StateEmpty ||
		(s.State == StateLoading && c.loadFailed) ||
		(s.State == StateReviewing && c.pending)
	return s
}

func (c *Controller) begin() bool {
	if !c.op.TryLock() {
		return false
	}
	c.inFlight.Store(true)
	return true
}

func (c *Controller) end() {
	c.inFlight.Store(false)
	c.op.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.log.Debug("session state", zap.Stringer("state", s))
}

func (c *Controller) leaveTab() {
	c.mu.Lock()
	c.suspended = true
	c.mu.Unlock()
	c.log.Debug("session suspended")
}

func (c *Controller) enterTab(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReviewing {
		c.suspended = false
		cursor, n := c.cursor, len(c.queue)
		c.mu.Unlock()
		c.log.Debug("session resumed", zap.Int("cursor", cursor), zap.Int("queue", n))
		return nil
	}
	c.mu.Unlock()

	if !c.begin() {
		return ErrBusy
	}
	defer c.end()

	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()
	return c.runEntering(ctx)
}

// runEntering decides between the cached completion, the setup dialog and a
// resumed session. Called with the op lock held.
func (c *Controller) runEntering(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateEntering
	c.notice = nil
	c.loadFailed = false
	c.mu.Unlock()

	rec, ok, err := c.cache.ReadAndValidate(ctx, c.deckID)
	if err != nil {
		c.setState(StateIdle)
		return err
	}
	if ok {
		st := *rec.CachedStats
		c.mu.Lock()
		c.state = StateCompleted
		c.stats = &st
		c.queue, c.cursor, c.pending = nil, 0, false
		c.mu.Unlock()
		c.log.Debug("deck already completed today")
		return nil
	}

	meta, err := c.remote.ModeData(ctx, c.userID, c.deckID)
	if err != nil {
		c.setState(StateIdle)
		c.log.Warn("mode data failed", zap.Error(err))
		return fmt.Errorf("enter deck %s: %w", c.deckID, err)
	}

	if meta.FirstTime {
		c.mu.Lock()
		c.state = StateSetup
		c.suggested = c.suggestLimit(ctx, meta)
		c.mu.Unlock()
		c.log.Debug("session state", zap.Stringer("state", StateSetup))
		return nil
	}

	c.repairSetup(ctx, meta)

	c.mu.Lock()
	c.state = StateResuming
	c.notice = &meta
	c.mu.Unlock()
	c.log.Info("resuming deck",
		zap.Int("new_per_day", meta.NewFlashcardsPerDay),
		zap.Int("known", meta.KnowCardsCount),
	)
	return c.load(ctx)
}

// suggestLimit picks the value prefilled in the setup dialog.
func (c *Controller) suggestLimit(ctx context.Context, meta models.ModeMetadata) int {
	if meta.NewFlashcardsPerDay > 0 {
		return meta.NewFlashcardsPerDay
	}
	if st, err := c.cache.Setup(ctx, c.deckID); err == nil && st.DailyNewCardLimit > 0 {
		return st.DailyNewCardLimit
	}
	return DefaultDailyLimit
}

// repairSetup records the server's limit locally when the local setup flag is missing.
func (c *Controller) repairSetup(ctx context.Context, meta models.ModeMetadata) {
	st, err := c.cache.Setup(ctx, c.deckID)
	if err != nil || st.HasEverBeenSetUp || meta.NewFlashcardsPerDay < 1 {
		return
	}
	if err := c.cache.SaveSetup(ctx, c.deckID, meta.NewFlashcardsPerDay); err != nil {
		c.log.Warn("repair local setup failed", zap.Error(err))
	}
}

// load fetches today's queue. Called with the op lock held.
// The current queue is replaced only when start-session succeeds.
func (c *Controller) load(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLoading
	c.loadFailed = false
	c.mu.Unlock()

	cards, err := c.remote.StartSession(ctx, c.userID, c.deckID)
	if errors.Is(err, scheduler.ErrNoCardsAvailable) {
		cards, err = nil, nil
	}
	if err != nil {
		c.mu.Lock()
		c.loadFailed = true
		c.mu.Unlock()
		c.log.Warn("start session failed", zap.Error(err))
		return fmt.Errorf("load deck %s: %w", c.deckID, err)
	}

	queue := make([]models.StudyCard, len(cards))
	copy(queue, cards)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue, c.cursor, c.attempts = queue, 0, 0
	c.stats, c.pending = nil, false
	if len(queue) == 0 {
		c.state = StateEmpty
		c.sessionID = ""
		c.log.Info("no cards available")
		return nil
	}
	c.state = StateReviewing
	c.sessionID = c.newID()
	c.log.Info("session started", zap.String("session", c.sessionID), zap.Int("cards", len(queue)))
	return nil
}

func (c *Controller) confirmSetup(ctx context.Context, limit int) error {
	if limit < 1 {
		return ErrInvalidLimit
	}
	if !c.begin() {
		return ErrBusy
	}
	defer c.end()

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st != StateSetup {
		return fmt.Errorf("%w: confirm setup in %s", ErrInvalidTransition, st)
	}

	if err := c.persistLimit(ctx, limit); err != nil {
		return err
	}
	return c.load(ctx)
}

func (c *Controller) changeLimit(ctx context.Context, limit int) error {
	if limit < 1 {
		return ErrInvalidLimit
	}
	if !c.begin() {
		return ErrBusy
	}
	defer c.end()

	if err := c.persistLimit(ctx, limit); err != nil {
		return err
	}
	if err := c.cache.Invalidate(ctx, c.deckID); err != nil {
		return err
	}

	c.mu.Lock()
	c.suspended = false
	c.notice = nil
	c.mu.Unlock()
	c.log.Info("daily limit changed", zap.Int("limit", limit))
	return c.load(ctx)
}

func (c *Controller) persistLimit(ctx context.Context, limit int) error {
	if err := c.remote.SetNewFlashcardsPerDay(ctx, c.userID, c.deckID, limit); err != nil {
		c.log.Warn("set daily limit failed", zap.Error(err))
		return fmt.Errorf("set daily limit for deck %s: %w", c.deckID, err)
	}
	return c.cache.SaveSetup(ctx, c.deckID, limit)
}

func (c *Controller) retry(ctx context.Context) error {
	if !c.begin() {
		return ErrBusy
	}
	defer c.end()

	c.mu.Lock()
	st, failed, pending := c.state, c.loadFailed, c.pending
	c.suspended = false
	c.mu.Unlock()

	switch {
	case st == StateEmpty, st == StateLoading && failed:
		return c.load(ctx)
	case st == StateReviewing && pending:
		return c.finalize(ctx)
	default:
		return fmt.Errorf("%w: retry in %s", ErrInvalidTransition, st)
	}
}
