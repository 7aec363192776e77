package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestGetContinueEpisode(t *testing.T) {
	l, _, _ := newTestLedger()
	ctx := context.Background()

	_, found, err := l.GetContinueEpisode(ctx, "w1", "s1", 1_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected no continue episode before any report")
	}

	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s1", EpisodeID: "e1", WatchTimeMs: 60, NowMs: 100})
	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s1", EpisodeID: "e2", WatchTimeMs: 30, NowMs: 200})

	got, found, err := l.GetContinueEpisode(ctx, "w1", "s1", 1_000)
	if err != nil || !found {
		t.Fatalf("expected continue episode, found=%v err=%v", found, err)
	}
	if got.EpisodeID != "e2" || got.ContinueTimeMs != 30 {
		t.Fatalf("unexpected continue episode: %+v", got)
	}

	// The bound is exclusive and in the caller's clock.
	got, found, _ = l.GetContinueEpisode(ctx, "w1", "s1", 200)
	if !found || got.EpisodeID != "e1" {
		t.Fatalf("expected e1 before ms=200, got found=%v %+v", found, got)
	}
}

func TestGetLatestWatchedEpisode(t *testing.T) {
	l, _, _ := newTestLedger()
	ctx := context.Background()

	_, found, err := l.GetLatestWatchedEpisode(ctx, "w1", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected empty result for unwatched season")
	}

	id := record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s1", EpisodeID: "e1", WatchTimeMs: 60, NowMs: 100})
	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s1", EpisodeID: "e1", WatchSessionID: id, WatchTimeMs: 120, NowMs: 200})

	got, found, err := l.GetLatestWatchedEpisode(ctx, "w1", "s1")
	if err != nil || !found {
		t.Fatalf("expected pointer, found=%v err=%v", found, err)
	}
	// The watched time follows the cache, which saw the later report.
	if got.EpisodeID != "e1" || got.WatchedTimeMs != 120 {
		t.Fatalf("unexpected latest watched episode: %+v", got)
	}
}

func TestGetLatestWatchedTimeOfEpisode(t *testing.T) {
	l, store, _ := newTestLedger()
	ctx := context.Background()

	// No pointer: absent, not zero.
	_, found, err := l.GetLatestWatchedTimeOfEpisode(ctx, "w1", "s1", "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected absent result for unwatched episode")
	}

	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s1", EpisodeID: "e1", WatchTimeMs: 90, NowMs: 100})

	ms, found, err := l.GetLatestWatchedTimeOfEpisode(ctx, "w1", "s1", "e1")
	if err != nil || !found {
		t.Fatalf("expected watched time, found=%v err=%v", found, err)
	}
	if ms != 90 {
		t.Fatalf("expected 90, got %d", ms)
	}

	// Pointer present but cache entry missing resolves to 0, still found.
	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateWatchedEpisode(ctx, WatchedEpisode{
			WatcherID: "w1", SeasonID: "s1", EpisodeID: "e1",
			LatestWatchSessionID: "evicted-session", UpdatedTimeMs: 100,
		})
	})
	if err != nil {
		t.Fatalf("repoint episode: %v", err)
	}
	ms, found, _ = l.GetLatestWatchedTimeOfEpisode(ctx, "w1", "s1", "e1")
	if !found || ms != 0 {
		t.Fatalf("expected found with 0 on cache miss, got found=%v ms=%d", found, ms)
	}
}

func TestListRecentlyWatchedSeasons_CursorWalk(t *testing.T) {
	l, _, _ := newTestLedger()
	ctx := context.Background()

	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s1", EpisodeID: "e1", WatchTimeMs: 10, NowMs: 100})
	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s2", EpisodeID: "e1", WatchTimeMs: 20, NowMs: 300})

	page, cursor, err := l.ListRecentlyWatchedSeasons(ctx, "w1", 1_000, 1)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 1 || page[0].SeasonID != "s2" || page[0].LatestWatchedTimeMs != 20 {
		t.Fatalf("unexpected first page: %+v", page)
	}
	if cursor != 300 {
		t.Fatalf("expected cursor 300, got %d", cursor)
	}

	page, cursor, err = l.ListRecentlyWatchedSeasons(ctx, "w1", cursor, 1)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page) != 1 || page[0].SeasonID != "s1" {
		t.Fatalf("unexpected second page: %+v", page)
	}
	// Page is full, so one more (empty) page signals the end.
	if cursor != 100 {
		t.Fatalf("expected cursor 100, got %d", cursor)
	}

	page, cursor, err = l.ListRecentlyWatchedSeasons(ctx, "w1", cursor, 1)
	if err != nil {
		t.Fatalf("final page: %v", err)
	}
	if len(page) != 0 || cursor != 0 {
		t.Fatalf("expected empty terminal page, got %+v cursor=%d", page, cursor)
	}
}

func TestListWatchSessions_EnumeratesExactlyOnce(t *testing.T) {
	l, _, _ := newTestLedger()
	ctx := context.Background()

	const total = 7
	for i := 0; i < total; i++ {
		record(t, l, RecordProgressParams{
			WatcherID: "w1", SeasonID: "s1", EpisodeID: "e1",
			WatchTimeMs: int64(i), NowMs: int64(100 + i*50),
		})
	}

	seen := make(map[string]bool)
	cursor := int64(1_000_000)
	var lastMs int64
	pages := 0
	for {
		page, next, err := l.ListWatchSessions(ctx, "w1", cursor, 3)
		if err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		for _, entry := range page {
			if seen[entry.WatchSessionID] {
				t.Fatalf("session %s repeated", entry.WatchSessionID)
			}
			seen[entry.WatchSessionID] = true
			if lastMs != 0 && entry.UpdatedTimeMs >= lastMs {
				t.Fatalf("order not strictly descending: %d then %d", lastMs, entry.UpdatedTimeMs)
			}
			lastMs = entry.UpdatedTimeMs
		}
		pages++
		if next == 0 {
			break
		}
		cursor = next
	}

	if len(seen) != total {
		t.Fatalf("expected %d sessions enumerated, got %d", total, len(seen))
	}
	// 7 rows with limit 3: two full pages plus a short final one.
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
}

func TestListWatchedEpisodes(t *testing.T) {
	l, _, _ := newTestLedger()
	ctx := context.Background()

	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s1", EpisodeID: "e1", WatchTimeMs: 10, NowMs: 100})
	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s1", EpisodeID: "e2", WatchTimeMs: 20, NowMs: 200})
	record(t, l, RecordProgressParams{WatcherID: "w1", SeasonID: "s2", EpisodeID: "e1", WatchTimeMs: 30, NowMs: 300})
	// Other watchers never leak in.
	record(t, l, RecordProgressParams{WatcherID: "w2", SeasonID: "s1", EpisodeID: "e1", WatchTimeMs: 99, NowMs: 400})

	page, cursor, err := l.ListWatchedEpisodes(ctx, "w1", 1_000, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(page))
	}
	if page[0].SeasonID != "s2" || page[1].EpisodeID != "e2" || page[2].EpisodeID != "e1" {
		t.Fatalf("unexpected order: %+v", page)
	}
	if page[0].WatchedTimeMs != 30 {
		t.Fatalf("expected cache-joined watched time 30, got %d", page[0].WatchedTimeMs)
	}
	if cursor != 0 {
		t.Fatalf("short page must not return a cursor, got %d", cursor)
	}
}

func TestList_Validation(t *testing.T) {
	l, _, _ := newTestLedger()
	ctx := context.Background()

	if _, _, err := l.ListWatchSessions(ctx, "w1", 1_000, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero limit, got %v", err)
	}
	if _, _, err := l.ListRecentlyWatchedSeasons(ctx, "", 1_000, 5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty watcher, got %v", err)
	}
	if _, _, err := l.ListWatchedEpisodes(ctx, "w1", 0, 5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero cursor, got %v", err)
	}
}
