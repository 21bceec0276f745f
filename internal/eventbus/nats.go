/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const subjectPrefix = "plgen.events."

// NATSBus mirrors generation events onto NATS so other instances and
// downstream consumers (playout, analytics) see committed playlists.
// Local subscribers keep working through the in-memory bus even when
// the broker is down.
type NATSBus struct {
	conn     *nats.Conn
	fallback *events.Bus
	logger   zerolog.Logger
	nodeID   string
}

// NewNATSBus connects to NATS with unlimited reconnects. A failed
// initial connection is not fatal: events degrade to in-process only.
func NewNATSBus(natsURL string, logger zerolog.Logger) (*NATSBus, error) {
	bus := &NATSBus{
		fallback: events.NewBus(),
		logger:   logger.With().Str("component", "nats_bus").Logger(),
		nodeID:   generateNodeID(),
	}

	conn, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		bus.logger.Warn().Err(err).Str("url", natsURL).Msg("NATS unavailable, events stay in-process")
		return bus, nil
	}

	bus.conn = conn
	bus.logger.Info().Str("url", natsURL).Msg("connected to NATS")
	return bus, nil
}

// Subscribe registers a local subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	return nb.fallback.Subscribe(eventType)
}

// Publish delivers locally and, when connected, to the NATS subject for
// the event type.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.fallback.Publish(eventType, payload)

	if nb.conn == nil {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("failed to marshal event")
		return
	}
	if err := nb.conn.Publish(subjectPrefix+string(eventType), data); err != nil {
		nb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("failed to publish event")
	}
}

// Unsubscribe removes a local subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.fallback.Unsubscribe(eventType, sub)
}

// Close drains and closes the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	if err := nb.conn.Drain(); err != nil {
		nb.conn.Close()
		return err
	}
	return nil
}

// message is the wire format published to NATS.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
