package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production Store implementation.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// mapPgErr folds driver errors into the package taxonomy: unique
// violations and serialization failures become ErrConflict so callers can
// retry the whole call.
func mapPgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%w: %s: %s", ErrConflict, op, pgErr.Code)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapPgErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgErr("commit", err)
	}
	return nil
}

const sessionColumns = `watcher_id, watch_session_id, season_id, episode_id, watch_time_ms, updated_time_ms`

func scanSession(row pgx.Row) (WatchSession, error) {
	var out WatchSession
	err := row.Scan(&out.WatcherID, &out.WatchSessionID, &out.SeasonID, &out.EpisodeID, &out.WatchTimeMs, &out.UpdatedTimeMs)
	return out, err
}

func (s *PostgresStore) GetSession(ctx context.Context, watcherID, watchSessionID string) (WatchSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM watch_sessions WHERE watcher_id=$1 AND watch_session_id=$2`
	out, err := scanSession(s.db.QueryRow(ctx, q, watcherID, watchSessionID))
	if err != nil {
		return WatchSession{}, mapPgErr("get session", err)
	}
	return out, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, watcherID string, beforeMs int64, limit int) ([]WatchSession, error) {
	q := `SELECT ` + sessionColumns + `
	      FROM watch_sessions
	      WHERE watcher_id=$1 AND updated_time_ms < $2
	      ORDER BY updated_time_ms DESC, watch_session_id DESC
	      LIMIT $3`
	return s.listSessions(ctx, q, watcherID, beforeMs, limit)
}

func (s *PostgresStore) ListSessionsBySeason(ctx context.Context, watcherID, seasonID string, beforeMs int64, limit int) ([]WatchSession, error) {
	q := `SELECT ` + sessionColumns + `
	      FROM watch_sessions
	      WHERE watcher_id=$1 AND season_id=$4 AND updated_time_ms < $2
	      ORDER BY updated_time_ms DESC, watch_session_id DESC
	      LIMIT $3`
	return s.listSessions(ctx, q, watcherID, beforeMs, limit, seasonID)
}

func (s *PostgresStore) listSessions(ctx context.Context, q, watcherID string, beforeMs int64, limit int, extra ...any) ([]WatchSession, error) {
	args := append([]any{watcherID, beforeMs, limit}, extra...)
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, mapPgErr("list sessions", err)
	}
	defer rows.Close()

	var out []WatchSession
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, mapPgErr("scan session", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list sessions", err)
	}
	return out, nil
}

func (s *PostgresStore) GetWatchedSeason(ctx context.Context, watcherID, seasonID string) (WatchedSeason, error) {
	return getWatchedSeason(ctx, s.db, watcherID, seasonID, false)
}

func (s *PostgresStore) ListWatchedSeasons(ctx context.Context, watcherID string, beforeMs int64, limit int) ([]WatchedSeason, error) {
	q := `SELECT watcher_id, season_id, latest_episode_id, latest_watch_session_id, updated_time_ms
	      FROM watched_seasons
	      WHERE watcher_id=$1 AND updated_time_ms < $2
	      ORDER BY updated_time_ms DESC, season_id DESC
	      LIMIT $3`
	rows, err := s.db.Query(ctx, q, watcherID, beforeMs, limit)
	if err != nil {
		return nil, mapPgErr("list watched seasons", err)
	}
	defer rows.Close()

	var out []WatchedSeason
	for rows.Next() {
		var rec WatchedSeason
		if err := rows.Scan(&rec.WatcherID, &rec.SeasonID, &rec.LatestEpisodeID, &rec.LatestWatchSessionID, &rec.UpdatedTimeMs); err != nil {
			return nil, mapPgErr("scan watched season", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list watched seasons", err)
	}
	return out, nil
}

func (s *PostgresStore) GetWatchedEpisode(ctx context.Context, watcherID, seasonID, episodeID string) (WatchedEpisode, error) {
	return getWatchedEpisode(ctx, s.db, watcherID, seasonID, episodeID, false)
}

func (s *PostgresStore) ListWatchedEpisodes(ctx context.Context, watcherID string, beforeMs int64, limit int) ([]WatchedEpisode, error) {
	q := `SELECT watcher_id, season_id, episode_id, latest_watch_session_id, updated_time_ms
	      FROM watched_episodes
	      WHERE watcher_id=$1 AND updated_time_ms < $2
	      ORDER BY updated_time_ms DESC, season_id DESC, episode_id DESC
	      LIMIT $3`
	rows, err := s.db.Query(ctx, q, watcherID, beforeMs, limit)
	if err != nil {
		return nil, mapPgErr("list watched episodes", err)
	}
	defer rows.Close()

	var out []WatchedEpisode
	for rows.Next() {
		var rec WatchedEpisode
		if err := rows.Scan(&rec.WatcherID, &rec.SeasonID, &rec.EpisodeID, &rec.LatestWatchSessionID, &rec.UpdatedTimeMs); err != nil {
			return nil, mapPgErr("scan watched episode", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list watched episodes", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertWatchLater(ctx context.Context, row WatchLaterSeason) error {
	q := `INSERT INTO watch_later_seasons (watcher_id, season_id, added_time_ms)
	      VALUES ($1, $2, $3)
	      ON CONFLICT (watcher_id, season_id) DO UPDATE SET added_time_ms = EXCLUDED.added_time_ms`
	_, err := s.db.Exec(ctx, q, row.WatcherID, row.SeasonID, row.AddedTimeMs)
	return mapPgErr("upsert watch later", err)
}

func (s *PostgresStore) DeleteWatchLater(ctx context.Context, watcherID, seasonID string) error {
	q := `DELETE FROM watch_later_seasons WHERE watcher_id=$1 AND season_id=$2`
	_, err := s.db.Exec(ctx, q, watcherID, seasonID)
	return mapPgErr("delete watch later", err)
}

func (s *PostgresStore) GetWatchLater(ctx context.Context, watcherID, seasonID string) (WatchLaterSeason, error) {
	q := `SELECT watcher_id, season_id, added_time_ms FROM watch_later_seasons WHERE watcher_id=$1 AND season_id=$2`
	var out WatchLaterSeason
	if err := s.db.QueryRow(ctx, q, watcherID, seasonID).Scan(&out.WatcherID, &out.SeasonID, &out.AddedTimeMs); err != nil {
		return WatchLaterSeason{}, mapPgErr("get watch later", err)
	}
	return out, nil
}

func (s *PostgresStore) ListWatchLater(ctx context.Context, watcherID string, beforeMs int64, limit int) ([]WatchLaterSeason, error) {
	q := `SELECT watcher_id, season_id, added_time_ms
	      FROM watch_later_seasons
	      WHERE watcher_id=$1 AND added_time_ms < $2
	      ORDER BY added_time_ms DESC, season_id DESC
	      LIMIT $3`
	rows, err := s.db.Query(ctx, q, watcherID, beforeMs, limit)
	if err != nil {
		return nil, mapPgErr("list watch later", err)
	}
	defer rows.Close()

	var out []WatchLaterSeason
	for rows.Next() {
		var rec WatchLaterSeason
		if err := rows.Scan(&rec.WatcherID, &rec.SeasonID, &rec.AddedTimeMs); err != nil {
			return nil, mapPgErr("scan watch later", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list watch later", err)
	}
	return out, nil
}

// querier covers both the pool and an open transaction so point reads can
// be shared between the Store and Tx views.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getWatchedSeason(ctx context.Context, db querier, watcherID, seasonID string, lock bool) (WatchedSeason, error) {
	q := `SELECT watcher_id, season_id, latest_episode_id, latest_watch_session_id, updated_time_ms
	      FROM watched_seasons WHERE watcher_id=$1 AND season_id=$2`
	if lock {
		q += ` FOR UPDATE`
	}
	var out WatchedSeason
	if err := db.QueryRow(ctx, q, watcherID, seasonID).Scan(&out.WatcherID, &out.SeasonID, &out.LatestEpisodeID, &out.LatestWatchSessionID, &out.UpdatedTimeMs); err != nil {
		return WatchedSeason{}, mapPgErr("get watched season", err)
	}
	return out, nil
}

func getWatchedEpisode(ctx context.Context, db querier, watcherID, seasonID, episodeID string, lock bool) (WatchedEpisode, error) {
	q := `SELECT watcher_id, season_id, episode_id, latest_watch_session_id, updated_time_ms
	      FROM watched_episodes WHERE watcher_id=$1 AND season_id=$2 AND episode_id=$3`
	if lock {
		q += ` FOR UPDATE`
	}
	var out WatchedEpisode
	if err := db.QueryRow(ctx, q, watcherID, seasonID, episodeID).Scan(&out.WatcherID, &out.SeasonID, &out.EpisodeID, &out.LatestWatchSessionID, &out.UpdatedTimeMs); err != nil {
		return WatchedEpisode{}, mapPgErr("get watched episode", err)
	}
	return out, nil
}

// pgTx adapts an open pgx transaction to the Tx interface.
type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) GetSession(ctx context.Context, watcherID, watchSessionID string) (WatchSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM watch_sessions WHERE watcher_id=$1 AND watch_session_id=$2 FOR UPDATE`
	out, err := scanSession(t.tx.QueryRow(ctx, q, watcherID, watchSessionID))
	if err != nil {
		return WatchSession{}, mapPgErr("get session", err)
	}
	return out, nil
}

func (t pgTx) InsertSession(ctx context.Context, row WatchSession) error {
	q := `INSERT INTO watch_sessions (` + sessionColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := t.tx.Exec(ctx, q, row.WatcherID, row.WatchSessionID, row.SeasonID, row.EpisodeID, row.WatchTimeMs, row.UpdatedTimeMs)
	return mapPgErr("insert session", err)
}

func (t pgTx) UpdateSessionProgress(ctx context.Context, watcherID, watchSessionID string, watchTimeMs, updatedTimeMs int64) error {
	q := `UPDATE watch_sessions SET watch_time_ms=$3, updated_time_ms=$4 WHERE watcher_id=$1 AND watch_session_id=$2`
	ct, err := t.tx.Exec(ctx, q, watcherID, watchSessionID, watchTimeMs, updatedTimeMs)
	if err != nil {
		return mapPgErr("update session", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: update session", ErrNotFound)
	}
	return nil
}

// Tx-scoped pointer reads lock the row, so the monotonicity check and
// the update that follows it are serialized against concurrent reports.
// When the row does not exist yet, concurrent inserts collide on the
// primary key instead and the loser surfaces as ErrConflict.
func (t pgTx) GetWatchedSeason(ctx context.Context, watcherID, seasonID string) (WatchedSeason, error) {
	return getWatchedSeason(ctx, t.tx, watcherID, seasonID, true)
}

func (t pgTx) InsertWatchedSeason(ctx context.Context, row WatchedSeason) error {
	q := `INSERT INTO watched_seasons (watcher_id, season_id, latest_episode_id, latest_watch_session_id, updated_time_ms)
	      VALUES ($1, $2, $3, $4, $5)`
	_, err := t.tx.Exec(ctx, q, row.WatcherID, row.SeasonID, row.LatestEpisodeID, row.LatestWatchSessionID, row.UpdatedTimeMs)
	return mapPgErr("insert watched season", err)
}

func (t pgTx) UpdateWatchedSeason(ctx context.Context, row WatchedSeason) error {
	q := `UPDATE watched_seasons
	      SET latest_episode_id=$3, latest_watch_session_id=$4, updated_time_ms=$5
	      WHERE watcher_id=$1 AND season_id=$2`
	_, err := t.tx.Exec(ctx, q, row.WatcherID, row.SeasonID, row.LatestEpisodeID, row.LatestWatchSessionID, row.UpdatedTimeMs)
	return mapPgErr("update watched season", err)
}

func (t pgTx) GetWatchedEpisode(ctx context.Context, watcherID, seasonID, episodeID string) (WatchedEpisode, error) {
	return getWatchedEpisode(ctx, t.tx, watcherID, seasonID, episodeID, true)
}

func (t pgTx) InsertWatchedEpisode(ctx context.Context, row WatchedEpisode) error {
	q := `INSERT INTO watched_episodes (watcher_id, season_id, episode_id, latest_watch_session_id, updated_time_ms)
	      VALUES ($1, $2, $3, $4, $5)`
	_, err := t.tx.Exec(ctx, q, row.WatcherID, row.SeasonID, row.EpisodeID, row.LatestWatchSessionID, row.UpdatedTimeMs)
	return mapPgErr("insert watched episode", err)
}

func (t pgTx) UpdateWatchedEpisode(ctx context.Context, row WatchedEpisode) error {
	q := `UPDATE watched_episodes
	      SET latest_watch_session_id=$4, updated_time_ms=$5
	      WHERE watcher_id=$1 AND season_id=$2 AND episode_id=$3`
	_, err := t.tx.Exec(ctx, q, row.WatcherID, row.SeasonID, row.EpisodeID, row.LatestWatchSessionID, row.UpdatedTimeMs)
	return mapPgErr("update watched episode", err)
}
