// Package queue abstracts the at-least-once job queue. A received message stays
// invisible to other consumers until its visibility timeout lapses; deleting it
// by receipt handle is the acknowledgement.
package queue

import (
	"context"
	"errors"
)

// ErrStaleReceipt is returned when a receipt handle no longer owns its message,
// usually because the visibility timeout lapsed and another consumer took it.
var ErrStaleReceipt = errors.New("stale receipt handle")

// Message is one delivery of a queued body.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	ReceiveCount  int
}

// Queue is implemented by SQSQueue and SQLiteQueue.
type Queue interface {
	Send(ctx context.Context, body string) (string, error)
	Receive(ctx context.Context, maxMessages, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}
