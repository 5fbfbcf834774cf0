package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"polling-engine/internal/metrics"
)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSink forwards poll events to the Firebase topic "poll-<id>". Events are
// queued and sent by a single goroutine, so Publish never waits on the
// network and per-poll order is kept.
type FCMSink struct {
	client messageSender
	queue  chan Event
	logger *slog.Logger
}

func NewFCMSink(ctx context.Context, credentialsFile string, buffer int, logger *slog.Logger) (*FCMSink, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return newFCMSink(client, buffer, logger), nil
}

func newFCMSink(client messageSender, buffer int, logger *slog.Logger) *FCMSink {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FCMSink{
		client: client,
		queue:  make(chan Event, buffer),
		logger: logger,
	}
}

func (s *FCMSink) Publish(ctx context.Context, ev Event) {
	select {
	case s.queue <- ev:
	default:
		metrics.IncNotifyDropped()
		s.logger.Warn("fcm queue full, dropping poll event",
			"event", "fcm_drop",
			"module", "notify",
			"layer", "platform",
			"poll_id", ev.PollID,
		)
	}
}

// Run sends queued events until ctx is cancelled.
func (s *FCMSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			if _, err := s.client.Send(ctx, fcmMessage(ev)); err != nil {
				s.logger.Error("fcm send failed",
					"event", "fcm_send_failed",
					"module", "notify",
					"layer", "platform",
					"poll_id", ev.PollID,
					"error", err.Error(),
				)
			}
		}
	}
}

func fcmMessage(ev Event) *messaging.Message {
	return &messaging.Message{
		Topic: "poll-" + ev.PollID,
		Data: map[string]string{
			"kind":         ev.Kind,
			"poll_id":      ev.PollID,
			"status":       string(ev.Status),
			"total_voters": strconv.FormatInt(ev.TotalVoters, 10),
			"winners":      strings.Join(ev.Winners, ","),
		},
	}
}
