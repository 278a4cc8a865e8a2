// Package events publishes route events to NATS for downstream consumers
// (parent notifications, analytics). Publishing is optional; when no NATS
// URL is configured the tracker simply has no publisher.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"schoolbus/internal/domain"
)

type NATSPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With("component", "nats_publisher")

	nc, err := nats.Connect(url,
		nats.Name("schoolbus-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			logger.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSPublisher{nc: nc, logger: logger}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Publish sends the event on subject routes.<routeID>.<type>.
func (p *NATSPublisher) Publish(ev domain.Event) error {
	subject := fmt.Sprintf("routes.%s.%s", subjectToken(ev.RouteID), subjectToken(string(ev.Type)))

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(subject, data)
}

// subjectToken sanitizes a value for use as a NATS subject token; tokens
// cannot contain spaces, wildcards or dots.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
