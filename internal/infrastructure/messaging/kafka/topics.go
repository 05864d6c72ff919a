package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/TimothyStephens/magi/pkg/errors"
)

const (
	TopicRunCompleted = "magi.run.completed"

	EventTypeRunCompleted = "run.completed"
	EventSource           = "magi"
	SchemaVersion         = "1"
)

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunCompletedPayload summarizes one MAGI run.
type RunCompletedPayload struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Compounds  int       `json:"compounds"`
	Links      int       `json:"compound_reaction_links"`
	GeneHits   int       `json:"gene_to_reaction_hits"`
	RefseqHits int       `json:"reaction_to_gene_hits"`
	Records    int       `json:"records"`
	Artifacts  []string  `json:"artifacts,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewEnvelope wraps payload in an envelope with a fresh event id.
func NewEnvelope(eventType string, payload interface{}, metadata map[string]string) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        EventSource,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       raw,
		Metadata:      metadata,
	}, nil
}

// DecodePayload unmarshals the envelope payload into dest.
func (e *EventEnvelope) DecodePayload(dest interface{}) error {
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event payload")
	}
	return nil
}
