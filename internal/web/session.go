package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DeleteState is the position of the two-click delete flow.
type DeleteState int

const (
	DeleteIdle DeleteState = iota
	DeletePending
	DeleteDone
)

func (s DeleteState) String() string {
	switch s {
	case DeletePending:
		return "pending"
	case DeleteDone:
		return "deleted"
	default:
		return "idle"
	}
}

// DeleteConfirmation tracks the delete button of one session.
//
// The first Click on a record arms it; a second Click on the same record,
// while it is still the selected one, confirms. Selecting another record,
// navigating away, or cancelling disarms it.
type DeleteConfirmation struct {
	state    DeleteState
	target   int64
	selected int64
}

// Select records which record's details are shown.
func (c *DeleteConfirmation) Select(id int64) {
	if id == c.selected {
		return
	}
	c.selected = id
	c.reset()
}

// Navigate is called when the user leaves the record view.
func (c *DeleteConfirmation) Navigate() {
	c.selected = 0
	c.reset()
}

// Click handles a press of the delete button for id. It returns true when
// the press confirms an armed delete; the caller then performs the delete and
// calls MarkDeleted.
func (c *DeleteConfirmation) Click(id int64) bool {
	if c.state == DeletePending && c.target == id && c.selected == id {
		return true
	}
	c.selected = id
	c.state = DeletePending
	c.target = id
	return false
}

// MarkDeleted records a completed delete and clears the selection.
func (c *DeleteConfirmation) MarkDeleted() {
	c.state = DeleteDone
	c.selected = 0
}

// Cancel disarms a pending delete.
func (c *DeleteConfirmation) Cancel() {
	c.reset()
}

// State returns the current state and, when pending or deleted, its record id.
func (c *DeleteConfirmation) State() (DeleteState, int64) {
	return c.state, c.target
}

// Pending reports whether a delete of id awaits confirmation.
func (c *DeleteConfirmation) Pending(id int64) bool {
	return c.state == DeletePending && c.target == id
}

func (c *DeleteConfirmation) reset() {
	c.state = DeleteIdle
	c.target = 0
}

// Session is the per-browser UI state.
type Session struct {
	mu     sync.Mutex
	Delete DeleteConfirmation

	// summaryFailed holds ids whose last summary attempt failed, so the
	// button offers "Try again".
	summaryFailed map[int64]string
	flash         string
}

// Lock serializes access to s.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// SetFlash stores a one-shot message for the next page view.
func (s *Session) SetFlash(msg string) { s.flash = msg }

// TakeFlash returns and clears the flash message.
func (s *Session) TakeFlash() string {
	msg := s.flash
	s.flash = ""
	return msg
}

// SetSummaryFailed remembers (or, with an empty message, forgets) a failed
// summary attempt for id.
func (s *Session) SetSummaryFailed(id int64, msg string) {
	if msg == "" {
		delete(s.summaryFailed, id)
		return
	}
	if s.summaryFailed == nil {
		s.summaryFailed = make(map[int64]string)
	}
	s.summaryFailed[id] = msg
}

// SummaryFailed returns the last summary failure for id, if any.
func (s *Session) SummaryFailed(id int64) (string, bool) {
	msg, ok := s.summaryFailed[id]
	return msg, ok
}

const (
	sessionCookie     = "ocrdesk_session"
	sessionTTL        = 12 * time.Hour
	maxSessions       = 1024
	sessionCookiePath = "/ui"
)

// SessionStore keeps sessions in a bounded LRU keyed by a random cookie value.
// Expired or evicted sessions simply start over at Idle.
type SessionStore struct {
	cache *expirable.LRU[string, *Session]
}

// NewSessionStore creates a store holding up to size sessions for ttl each.
func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: expirable.NewLRU[string, *Session](size, nil, ttl)}
}

// Get returns the request's session, creating one and setting the cookie
// when the request has none or its session has expired.
func (s *SessionStore) Get(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.cache.Get(c.Value); ok {
			return sess
		}
	}

	id := uuid.NewString()
	sess := &Session{}
	s.cache.Add(id, sess)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     sessionCookiePath,
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return sess
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}
