package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSSubscriber subscribes to JetStream subjects and feeds raw events into
// the single consume loop that fronts the deterministic core.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	log       zerolog.Logger
	consumers []jetstream.ConsumeContext
}

// RawEvent is a parsed-but-untyped message from NATS. The ingest loop
// converts it to a typed event before handing it to the core; ack/nak is
// decided by processing outcome, not delivery.
type RawEvent struct {
	Subject   string
	EventType string
	Data      []byte
	Timestamp time.Time
	AckFunc   func()
	NakFunc   func()
}

// SubjectConfig maps one NATS subject to one event type.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject layout. Each event type gets
// its own durable consumer so redelivery of one stream never stalls another.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "nav.pools.registered.>", EventType: "PoolRegistered", ConsumerName: "navledger-pool-reg", StreamName: "NAV_POOLS"},
		{Subject: "nav.pools.supply.>", EventType: "SupplyUpdate", ConsumerName: "navledger-supply", StreamName: "NAV_POOLS"},
		{Subject: "nav.wallet.transfers.>", EventType: "WalletTransfer", ConsumerName: "navledger-wallet", StreamName: "NAV_WALLET"},
		{Subject: "nav.bridge.lock.>", EventType: "DonationLocked", ConsumerName: "navledger-bridge-lock", StreamName: "NAV_BRIDGE"},
		{Subject: "nav.bridge.fill.>", EventType: "BridgeFillFinalized", ConsumerName: "navledger-bridge-fill", StreamName: "NAV_BRIDGE"},
		{Subject: "nav.bridge.outbound.>", EventType: "OutboundBridgeInitiated", ConsumerName: "navledger-bridge-out", StreamName: "NAV_BRIDGE"},
		{Subject: "nav.rates.>", EventType: "PriceUpdate", ConsumerName: "navledger-rates", StreamName: "NAV_RATES"},
		{Subject: "nav.positions.>", EventType: "AppPositionUpdate", ConsumerName: "navledger-positions", StreamName: "NAV_POSITIONS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent, log zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
		log:       log,
	}
}

// Subscribe creates durable consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		cfg := cfg
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				EventType: cfg.EventType,
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		ns.log.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}
	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{Name: "NAV_POOLS", Subjects: []string{"nav.pools.>"}},
		{Name: "NAV_WALLET", Subjects: []string{"nav.wallet.>"}},
		{Name: "NAV_BRIDGE", Subjects: []string{"nav.bridge.>"}},
		{Name: "NAV_RATES", Subjects: []string{"nav.rates.>"}},
		{Name: "NAV_POSITIONS", Subjects: []string{"nav.positions.>"}},
	}

	for _, cfg := range streams {
		cfg.Storage = jetstream.FileStorage
		cfg.Retention = jetstream.LimitsPolicy
		cfg.MaxAge = 72 * time.Hour
		cfg.Replicas = 1
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}
	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
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
