package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/phading-dev/play-activity-service/internal/ledger"
	"github.com/phading-dev/play-activity-service/internal/progresscache"
	"github.com/phading-dev/play-activity-service/internal/sessions"
)

type stubChecker struct {
	accountID string
	err       error
}

func (s *stubChecker) ExchangeSession(_ context.Context, _ string, _ sessions.CapabilityMask) (sessions.VerifiedSession, error) {
	if s.err != nil {
		return sessions.VerifiedSession{}, s.err
	}
	return sessions.VerifiedSession{AccountID: s.accountID, Capabilities: sessions.Capabilities{CanConsumeShows: true}}, nil
}

type testEnv struct {
	router chi.Router
	now    *int64
}

func newTestEnv(t *testing.T, checker sessions.Checker) testEnv {
	t.Helper()
	now := int64(1_000)
	d := Deps{
		Ledger:   ledger.New(ledger.NewMemoryStore(), progresscache.NewMemory(), zap.NewNop()),
		Sessions: checker,
		Log:      zap.NewNop(),
		Now:      func() int64 { return now },
	}
	r := chi.NewRouter()
	Mount(r, d)
	return testEnv{router: r, now: &now}
}

func doJSON(t *testing.T, r chi.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRecordProgress_NewSessionReturnsID(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	rr := doJSON(t, env.router, http.MethodPost, "/v1/progress", "tok", map[string]any{
		"season_id":     "s1",
		"episode_id":    "e1",
		"watch_time_ms": 60_000,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp recordProgressResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WatchSessionID == "" {
		t.Fatal("expected a watch session id")
	}
}

func TestRecordProgress_MissingWatchTimeIs400(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	rr := doJSON(t, env.router, http.MethodPost, "/v1/progress", "tok", map[string]any{
		"season_id":  "s1",
		"episode_id": "e1",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRecordProgress_NoTokenIs401(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	rr := doJSON(t, env.router, http.MethodPost, "/v1/progress", "", map[string]any{
		"season_id":     "s1",
		"episode_id":    "e1",
		"watch_time_ms": 0,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRecordProgress_RejectedSessionIs401(t *testing.T) {
	env := newTestEnv(t, &stubChecker{err: sessions.ErrUnauthorized})

	rr := doJSON(t, env.router, http.MethodPost, "/v1/progress", "tok", map[string]any{
		"season_id":     "s1",
		"episode_id":    "e1",
		"watch_time_ms": 100,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRecordProgress_UnknownSessionIs404(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	rr := doJSON(t, env.router, http.MethodPost, "/v1/progress", "tok", map[string]any{
		"season_id":        "s1",
		"episode_id":       "e1",
		"watch_session_id": "no-such-session",
		"watch_time_ms":    100,
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestContinueEpisode_RoundTrip(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	rr := doJSON(t, env.router, http.MethodPost, "/v1/progress", "tok", map[string]any{
		"season_id":     "s1",
		"episode_id":    "e2",
		"watch_time_ms": 45_000,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("record: %d", rr.Code)
	}

	// The continue query uses an exclusive bound, so advance the clock
	// past the report's timestamp.
	*env.now = 2_000

	rr = doJSON(t, env.router, http.MethodGet, "/v1/seasons/s1/continue", "tok", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("continue: %d: %s", rr.Code, rr.Body.String())
	}
	var resp continueEpisodeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EpisodeID != "e2" {
		t.Fatalf("expected episode e2, got %q", resp.EpisodeID)
	}
	if resp.ContinueTimeMs == nil || *resp.ContinueTimeMs != 45_000 {
		t.Fatalf("unexpected continue time: %v", resp.ContinueTimeMs)
	}
}

func TestContinueEpisode_NeverWatchedIsEmptyBody(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	rr := doJSON(t, env.router, http.MethodGet, "/v1/seasons/unseen/continue", "tok", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp continueEpisodeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EpisodeID != "" || resp.ContinueTimeMs != nil {
		t.Fatalf("expected empty response, got %+v", resp)
	}
}

func TestListRecentSeasons_Paginates(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	for i := 0; i < 3; i++ {
		*env.now = int64(1_000 + i*100)
		rr := doJSON(t, env.router, http.MethodPost, "/v1/progress", "tok", map[string]any{
			"season_id":     fmt.Sprintf("s%d", i),
			"episode_id":    "e1",
			"watch_time_ms": 10_000,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("record %d: %d", i, rr.Code)
		}
	}

	*env.now = 10_000
	rr := doJSON(t, env.router, http.MethodGet, "/v1/watched/seasons?limit=2", "tok", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d: %s", rr.Code, rr.Body.String())
	}
	var page1 recentSeasonsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &page1); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page1.Seasons) != 2 {
		t.Fatalf("expected 2 seasons, got %d", len(page1.Seasons))
	}
	if page1.Seasons[0].SeasonID != "s2" || page1.Seasons[1].SeasonID != "s1" {
		t.Fatalf("unexpected order: %+v", page1.Seasons)
	}
	if page1.NextCursorMs == 0 {
		t.Fatal("expected a next cursor on a full page")
	}

	rr = doJSON(t, env.router, http.MethodGet, fmt.Sprintf("/v1/watched/seasons?limit=2&cursor_ms=%d", page1.NextCursorMs), "tok", nil)
	var page2 recentSeasonsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &page2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page2.Seasons) != 1 || page2.Seasons[0].SeasonID != "s0" {
		t.Fatalf("unexpected second page: %+v", page2.Seasons)
	}
	if page2.NextCursorMs != 0 {
		t.Fatalf("expected end of list, got cursor %d", page2.NextCursorMs)
	}
}

func TestListRecentSeasons_BadCursorIs400(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	rr := doJSON(t, env.router, http.MethodGet, "/v1/watched/seasons?cursor_ms=abc", "tok", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestWatchLater_FullFlow(t *testing.T) {
	env := newTestEnv(t, &stubChecker{accountID: "acct-1"})

	rr := doJSON(t, env.router, http.MethodPost, "/v1/watch-later/s9", "tok", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("add: %d", rr.Code)
	}

	rr = doJSON(t, env.router, http.MethodGet, "/v1/watch-later/s9", "tok", nil)
	var check watchLaterCheckResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &check); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !check.InList {
		t.Fatal("expected season in watch later list")
	}

	*env.now = 5_000
	rr = doJSON(t, env.router, http.MethodGet, "/v1/watch-later/", "tok", nil)
	var list watchLaterListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Seasons) != 1 || list.Seasons[0].SeasonID != "s9" {
		t.Fatalf("unexpected list: %+v", list.Seasons)
	}

	rr = doJSON(t, env.router, http.MethodDelete, "/v1/watch-later/s9", "tok", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}

	rr = doJSON(t, env.router, http.MethodGet, "/v1/watch-later/s9", "tok", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &check); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if check.InList {
		t.Fatal("expected season removed from watch later list")
	}
}

func TestWatcherIsolation(t *testing.T) {
	checker := &stubChecker{accountID: "acct-a"}
	env := newTestEnv(t, checker)

	rr := doJSON(t, env.router, http.MethodPost, "/v1/progress", "tok", map[string]any{
		"season_id":     "s1",
		"episode_id":    "e1",
		"watch_time_ms": 100,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("record: %d", rr.Code)
	}
	var created recordProgressResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// A different account reporting against the same session id must not
	// be able to see or touch it.
	checker.accountID = "acct-b"
	rr = doJSON(t, env.router, http.MethodPost, "/v1/progress", "tok", map[string]any{
		"season_id":        "s1",
		"episode_id":       "e1",
		"watch_session_id": created.WatchSessionID,
		"watch_time_ms":    200,
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
