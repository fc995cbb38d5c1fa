package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// publisher is the subset of *nats.Conn the notifier needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes notifications to "<prefix>.<severity>".
type NATSNotifier struct {
	conn   publisher
	nc     *nats.Conn
	prefix string
}

// NewNATSNotifier connects to url, retrying in the background if the server is not up yet.
func NewNATSNotifier(url, subjectPrefix string, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("reflection-guard"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("connected to NATS", slog.String("url", url), slog.String("subject_prefix", subjectPrefix))

	n := newNATSNotifier(nc, subjectPrefix)
	n.nc = nc
	return n, nil
}

func newNATSNotifier(conn publisher, subjectPrefix string) *NATSNotifier {
	return &NATSNotifier{conn: conn, prefix: strings.TrimSuffix(subjectPrefix, ".")}
}

func (n *NATSNotifier) Name() string { return "nats" }

// Subject returns the subject a notification of the given severity is published on.
func (n *NATSNotifier) Subject(severity string) string {
	return n.prefix + "." + strings.ToLower(severity)
}

func (n *NATSNotifier) Notify(_ context.Context, note Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.conn.Publish(n.Subject(string(note.Event.Severity)), data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close drains the connection if this notifier opened one.
func (n *NATSNotifier) Close() {
	if n.nc != nil {
		_ = n.nc.Drain()
	}
}
