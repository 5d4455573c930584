package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"settlement-ledger-go/internal/store"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const (
	DefaultSubjectPrefix = "settlement.notifications"
	streamName           = "SETTLEMENT_NOTIFICATIONS"
)

// Message is the JSON payload published for every notification.
type Message struct {
	UserId    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// JetStreamSink publishes notifications to {prefix}.{user_id}.
type JetStreamSink struct {
	js     jetstream.JetStream
	prefix string
}

func NewJetStreamSink(js jetstream.JetStream, prefix string) *JetStreamSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &JetStreamSink{js: js, prefix: prefix}
}

func (s *JetStreamSink) Notify(ctx context.Context, userId, title, body string) error {
	data, err := json.Marshal(Message{
		UserId:    userId,
		Title:     title,
		Body:      body,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if _, err := s.js.Publish(ctx, s.Subject(userId), data); err != nil {
		return fmt.Errorf("%w: publish notification: %v", store.ErrExternalUnavailable, err)
	}
	return nil
}

// Subject returns the subject a user's notifications are published on.
// Subject tokens cannot contain dots or whitespace.
func (s *JetStreamSink) Subject(userId string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '\t', '*', '>':
			return '_'
		}
		return r
	}, userId)
	return s.prefix + "." + token
}

// EnsureStream creates or updates the stream that captures every subject
// under the sink's prefix.
func (s *JetStreamSink) EnsureStream(ctx context.Context) error {
	_, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{s.prefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create notification stream: %w", err)
	}
	zap.L().Info("Ensured notification stream", zap.String("stream", streamName), zap.String("prefix", s.prefix))
	return nil
}

// ConnectNATS dials NATS with unlimited reconnects and returns a JetStream
// context on the connection.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("settlementd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			zap.L().Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			zap.L().Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
