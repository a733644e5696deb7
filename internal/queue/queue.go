// Package queue provides the hand-off between round dispatch and history
// persistence, with two backends:
//
// 1. Memory Queue (in-memory, channel-based):
//   - No persistence, data lost on restart
//   - Zero external dependencies
//   - Default for single-process deployments
//
// 2. Redis Queue (Redis List-based):
//   - Persistent across restarts
//   - Supports several server replicas feeding one worker
//
// Architecture:
//
//	┌──────────────┐
//	│ MultiClient  │  one record per provider per round
//	└──────┬───────┘
//	       ▼
//	┌──────────────┐
//	│ History      │
//	│ Queue        │
//	└──────┬───────┘
//	       ▼
//	┌──────────────┐
//	│ History      │
//	│ Worker       │──(retry)──┐
//	│ (batches)    │           ▼
//	└──────┬───────┘        ┌─────┐
//	       ▼                │ DLQ │
//	 postgres / jsonl / s3  └─────┘
//
// Items are stored as JSON so both backends hand back the same representation.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Queue defines the interface for message queuing
type Queue interface {
	// Enqueue JSON-encodes an item and adds it to the queue
	Enqueue(ctx context.Context, item interface{}) error

	// Dequeue retrieves items from the queue (up to maxItems)
	// Blocks until at least one item is available or context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]json.RawMessage, error)

	// DequeueWithTimeout retrieves items with a timeout
	// Returns items if available before timeout, empty slice otherwise
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]json.RawMessage, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue defines the interface for handling failed items
type DeadLetterQueue interface {
	// Add adds a failed item to the dead letter queue with error info
	Add(ctx context.Context, payload json.RawMessage, err error) error

	// List retrieves items from the dead letter queue, oldest first
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove removes an item from the dead letter queue
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Timestamp time.Time       `json:"timestamp"`
	Retries   int             `json:"retries"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// Capacity bounds the in-memory queue; 0 means ten batches
	Capacity int

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}

func encodeItem(item interface{}) (json.RawMessage, error) {
	if raw, ok := item.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return data, nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
