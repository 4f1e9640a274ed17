package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteConfirmation_TwoClicks(t *testing.T) {
	var c DeleteConfirmation
	c.Select(5)

	assert.False(t, c.Click(5), "first click arms")
	state, id := c.State()
	assert.Equal(t, DeletePending, state)
	assert.Equal(t, int64(5), id)
	assert.True(t, c.Pending(5))

	assert.True(t, c.Click(5), "second click confirms")
	c.MarkDeleted()
	state, _ = c.State()
	assert.Equal(t, DeleteDone, state)
}

func TestDeleteConfirmation_Resets(t *testing.T) {
	tests := []struct {
		name  string
		reset func(c *DeleteConfirmation)
	}{
		{"select other record", func(c *DeleteConfirmation) { c.Select(6) }},
		{"navigate away", func(c *DeleteConfirmation) { c.Navigate() }},
		{"cancel", func(c *DeleteConfirmation) { c.Cancel() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c DeleteConfirmation
			c.Select(5)
			require.False(t, c.Click(5))

			tt.reset(&c)
			state, _ := c.State()
			assert.Equal(t, DeleteIdle, state)
			assert.False(t, c.Pending(5))

			c.Select(5)
			assert.False(t, c.Click(5), "after a reset the next click only arms")
		})
	}
}

func TestDeleteConfirmation_ReselectingSameRecordKeepsPending(t *testing.T) {
	var c DeleteConfirmation
	c.Select(5)
	require.False(t, c.Click(5))

	c.Select(5)
	assert.True(t, c.Pending(5))
	assert.True(t, c.Click(5))
}

func TestDeleteConfirmation_ClickOnOtherRecordRearms(t *testing.T) {
	var c DeleteConfirmation
	c.Select(5)
	require.False(t, c.Click(5))

	assert.False(t, c.Click(6))
	assert.True(t, c.Pending(6))
	assert.False(t, c.Pending(5))
}

func TestDeleteState_String(t *testing.T) {
	assert.Equal(t, "idle", DeleteIdle.String())
	assert.Equal(t, "pending", DeletePending.String())
	assert.Equal(t, "deleted", DeleteDone.String())
}

func TestSessionStore_CookieRoundTrip(t *testing.T) {
	store := NewSessionStore(10, time.Hour)

	rec := httptest.NewRecorder()
	first := store.Get(rec, httptest.NewRequest("GET", "/ui/records", nil))
	first.Delete.Select(3)
	first.Delete.Click(3)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest("GET", "/ui/records", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	again := store.Get(rec2, req)
	assert.Same(t, first, again)
	assert.True(t, again.Delete.Pending(3))
	assert.Empty(t, rec2.Result().Cookies(), "existing session sets no new cookie")

	// Another browser gets its own state
	other := store.Get(httptest.NewRecorder(), httptest.NewRequest("GET", "/ui/records", nil))
	assert.NotSame(t, first, other)
	assert.False(t, other.Delete.Pending(3))
	assert.Equal(t, 2, store.Len())
}

func TestSessionStore_UnknownCookieStartsFresh(t *testing.T) {
	store := NewSessionStore(10, time.Hour)
	req := httptest.NewRequest("GET", "/ui/records", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "stale"})
	rec := httptest.NewRecorder()

	sess := store.Get(rec, req)
	require.NotNil(t, sess)
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestSession_FlashAndSummaryFailure(t *testing.T) {
	var s Session
	s.SetFlash("hello")
	assert.Equal(t, "hello", s.TakeFlash())
	assert.Equal(t, "", s.TakeFlash())

	s.SetSummaryFailed(1, "timeout")
	msg, ok := s.SummaryFailed(1)
	assert.True(t, ok)
	assert.Equal(t, "timeout", msg)

	s.SetSummaryFailed(1, "")
	_, ok = s.SummaryFailed(1)
	assert.False(t, ok)
}
