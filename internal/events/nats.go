package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATSPublisher publishes events to a JetStream stream
type NATSPublisher struct {
	servers              string
	stream               string
	nc                   *nats.Conn
	js                   nats.JetStreamContext
	reconnectDelay       time.Duration
	maxReconnectAttempts int
}

func NewNATSPublisher(servers, stream string) *NATSPublisher {
	return &NATSPublisher{
		servers:              servers,
		stream:               stream,
		reconnectDelay:       2 * time.Second,
		maxReconnectAttempts: 10,
	}
}

// Connect establishes the connection and makes sure the stream exists
func (p *NATSPublisher) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name("ppplay-api"),
		nats.MaxReconnects(p.maxReconnectAttempts),
		nats.ReconnectWait(p.reconnectDelay),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("[Events] NATS disconnected with error")
			} else {
				log.Warn("[Events] NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("[Events] NATS reconnected")
		}),
	}

	nc, err := nats.Connect(p.servers, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p.nc = nc
	p.js = js

	if err := p.ensureStream(); err != nil {
		nc.Close()
		return err
	}

	log.WithField("servers", p.servers).Info("[Events] Connected to NATS with JetStream")
	return nil
}

func (p *NATSPublisher) ensureStream() error {
	if _, err := p.js.StreamInfo(p.stream); err == nil {
		return nil
	}

	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:        p.stream,
		Subjects:    Subjects,
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Description: "ppplay market, prediction and attendance events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", p.stream, err)
	}

	log.WithFields(log.Fields{
		"stream":   p.stream,
		"subjects": Subjects,
	}).Info("[Events] Created JetStream stream")
	return nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if p.js == nil {
		return fmt.Errorf("not connected to NATS JetStream")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(event.Subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", event.Subject, err)
	}

	log.WithFields(log.Fields{
		"subject": event.Subject,
		"size":    len(data),
	}).Debug("[Events] Published message")
	return nil
}

// Close drains pending publishes and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	log.Info("[Events] NATS connection closed")
	return nil
}
