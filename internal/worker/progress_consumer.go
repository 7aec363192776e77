// Package worker consumes progress reports published to NATS and applies
// them through the ledger, so playback clients can fire-and-forget.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/phading-dev/play-activity-service/internal/ledger"
	"github.com/phading-dev/play-activity-service/internal/platform/metrics"
)

const (
	progressSubject = "play.activity.progress"
	progressDurable = "play_activity_progress"

	fetchBatchSize = 100
	fetchMaxWait   = 2 * time.Second
)

// ProgressEvent is the published payload for one progress report.
// WatchTimeMs is a pointer so a missing field is distinguishable from a
// report of offset 0; absence makes the payload invalid.
type ProgressEvent struct {
	WatcherID      string `json:"watcher_id"`
	SeasonID       string `json:"season_id"`
	EpisodeID      string `json:"episode_id"`
	WatchSessionID string `json:"watch_session_id,omitempty"`
	WatchTimeMs    *int64 `json:"watch_time_ms"`
	OccurredAtMs   int64  `json:"occurred_at_ms"`
}

// StartProgressConsumer pulls progress events until ctx is cancelled.
// Malformed payloads are terminated so they stop redelivering; transient
// failures are nak'd for retry.
func StartProgressConsumer(ctx context.Context, nc *nats.Conn, l *ledger.Ledger, log *zap.Logger) {
	js, err := nc.JetStream()
	if err != nil {
		log.Error("progress consumer: jetstream", zap.Error(err))
		return
	}

	sub, err := js.PullSubscribe(progressSubject, progressDurable)
	if err != nil {
		log.Error("progress consumer: subscribe", zap.Error(err))
		return
	}

	log.Info("progress consumer started", zap.String("subject", progressSubject))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := sub.Fetch(fetchBatchSize, nats.MaxWait(fetchMaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Warn("progress consumer: fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			applyMessage(ctx, m, l, log)
		}
	}
}

// recordEvent applies one decoded report. An event without a client
// timestamp is stamped on arrival.
func recordEvent(ctx context.Context, l *ledger.Ledger, ev ProgressEvent) error {
	if ev.WatchTimeMs == nil {
		return fmt.Errorf("%w: watch_time_ms is required", ledger.ErrInvalidArgument)
	}
	nowMs := ev.OccurredAtMs
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	_, err := l.RecordProgress(ctx, ledger.RecordProgressParams{
		WatcherID:      ev.WatcherID,
		SeasonID:       ev.SeasonID,
		EpisodeID:      ev.EpisodeID,
		WatchSessionID: ev.WatchSessionID,
		WatchTimeMs:    *ev.WatchTimeMs,
		NowMs:          nowMs,
	})
	return err
}

func applyMessage(ctx context.Context, m *nats.Msg, l *ledger.Ledger, log *zap.Logger) {
	var ev ProgressEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		log.Warn("progress consumer: invalid payload", zap.Error(err))
		metrics.ConsumerMessages.WithLabelValues("invalid").Inc()
		if err := m.Term(); err != nil {
			log.Warn("progress consumer: term", zap.Error(err))
		}
		return
	}

	err := recordEvent(ctx, l, ev)
	switch {
	case err == nil:
		metrics.ConsumerMessages.WithLabelValues("ok").Inc()
		if err := m.Ack(); err != nil {
			log.Warn("progress consumer: ack", zap.Error(err))
		}
	case errors.Is(err, ledger.ErrInvalidArgument), errors.Is(err, ledger.ErrNotFound):
		// Redelivery cannot fix a bad report.
		log.Warn("progress consumer: rejected report",
			zap.String("watcher_id", ev.WatcherID),
			zap.String("watch_session_id", ev.WatchSessionID),
			zap.Error(err))
		metrics.ConsumerMessages.WithLabelValues("rejected").Inc()
		if err := m.Term(); err != nil {
			log.Warn("progress consumer: term", zap.Error(err))
		}
	default:
		metrics.ConsumerMessages.WithLabelValues("error").Inc()
		if err := m.Nak(); err != nil {
			log.Warn("progress consumer: nak", zap.Error(err))
		}
	}
}
