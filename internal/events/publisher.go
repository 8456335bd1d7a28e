package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/variantlab/variant-scraper/internal/database"
	"github.com/variantlab/variant-scraper/internal/variants"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeVariantsExtracted is published after a product's variants have
	// been extracted and verified.
	EventTypeVariantsExtracted EventType = "VARIANTS_EXTRACTED"

	// EventTypeExtractionFailed is published when a product page could not be
	// processed.
	EventTypeExtractionFailed EventType = "EXTRACTION_FAILED"
)

// VariantsExtractedPayload is the event body for EventTypeVariantsExtracted.
type VariantsExtractedPayload struct {
	EventID    string             `json:"event_id"`
	EventType  string             `json:"event_type"`
	Timestamp  time.Time          `json:"timestamp"`
	ASIN       string             `json:"asin"`
	Title      string             `json:"title"`
	URL        string             `json:"url,omitempty"`
	BasePrice  float64            `json:"base_price"`
	Variants   []variants.Variant `json:"variants"`
	Method     string             `json:"method"`
	Confidence float64            `json:"confidence"`
	Source     string             `json:"source"`
}

// ExtractionFailedPayload is the event body for EventTypeExtractionFailed.
type ExtractionFailedPayload struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	ASIN      string    `json:"asin"`
	URL       string    `json:"url,omitempty"`
	Error     string    `json:"error"`
	Source    string    `json:"source"`
}

// Publisher handles event publishing using the transactional outbox pattern.
type Publisher struct {
	db     *database.DB
	outbox *database.OutboxRepository
	logger *slog.Logger
}

func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishVariantsExtractedTx writes the event into the outbox inside the
// caller's transaction, so the event commits atomically with the product rows.
func (p *Publisher) PublishVariantsExtractedTx(ctx context.Context, tx pgx.Tx, payload *VariantsExtractedPayload) error {
	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeVariantsExtracted)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   payload.ASIN,
		EventType:     string(EventTypeVariantsExtracted),
		Payload:       data,
		TargetStream:  database.StreamVariantVerdicts,
	}

	if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	p.logger.Info("event queued in outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"asin", payload.ASIN,
		"variants", len(payload.Variants),
		"outbox_id", outboxEvent.ID,
	)

	return nil
}

// PublishExtractionFailed records a failure event in its own transaction.
func (p *Publisher) PublishExtractionFailed(ctx context.Context, payload *ExtractionFailedPayload) error {
	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeExtractionFailed)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   payload.ASIN,
		EventType:     string(EventTypeExtractionFailed),
		Payload:       data,
		TargetStream:  database.StreamVariantVerdicts,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		return p.outbox.InsertWithTx(ctx, tx, outboxEvent)
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"asin", payload.ASIN,
	)

	return nil
}

func stampPayload(eventID, eventType *string, timestamp *time.Time, source *string, t EventType) {
	if *eventID == "" {
		*eventID = uuid.New().String()
	}
	if *eventType == "" {
		*eventType = string(t)
	}
	if timestamp.IsZero() {
		*timestamp = time.Now()
	}
	if *source == "" {
		*source = database.EventSource
	}
}
