package alerting

import (
	"log/slog"

	"github.com/stoicmail/reflection-guard/internal/config"
)

// Build assembles the process-wide notifier from configuration. The returned
// close function releases sink connections. A nil Notifier means no sink is configured.
func Build(cfg config.NotificationsConfig, perMinute int, logger *slog.Logger) (Notifier, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		sinks   []Notifier
		closers []func()
	)
	if cfg.Log {
		sinks = append(sinks, instrumented{NewLogNotifier(logger)})
	}
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, instrumented{NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Timeout, nil)})
	}
	if cfg.NATS.URL != "" {
		n, err := NewNATSNotifier(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return nil, func() {}, err
		}
		sinks = append(sinks, instrumented{n})
		closers = append(closers, n.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(sinks) == 0 {
		return nil, closeAll, nil
	}
	var out Notifier = NewMultiNotifier(sinks...)
	if len(sinks) == 1 {
		out = sinks[0]
	}
	return NewRateLimitedNotifier(out, perMinute), closeAll, nil
}
