package processor

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
)

// Record is one message of a batch delivery.
type Record struct {
	MessageID string
	Body      string
}

// Partition splits records by outcome. outcomes[i] belongs to records[i]; a
// nil entry is a success.
func Partition(records []Record, outcomes []error) (succeeded, failed []string) {
	for i, rec := range records {
		var err error
		if i < len(outcomes) {
			err = outcomes[i]
		} else {
			err = fmt.Errorf("no outcome for record %s", rec.MessageID)
		}
		if err != nil {
			failed = append(failed, rec.MessageID)
		} else {
			succeeded = append(succeeded, rec.MessageID)
		}
	}
	return succeeded, failed
}

// ProcessBatch handles every record independently and returns the ids of the
// ones that failed. A panic in one record is contained to that record.
func (h *Handler) ProcessBatch(ctx context.Context, records []Record) []string {
	outcomes := make([]error, len(records))
	for i, rec := range records {
		outcomes[i] = h.handleRecovered(ctx, rec)
	}
	succeeded, failed := Partition(records, outcomes)
	h.log.WithField("succeeded", len(succeeded)).WithField("failed", len(failed)).Info("batch processed")
	return failed
}

func (h *Handler) handleRecovered(ctx context.Context, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("record %s panicked: %v", rec.MessageID, r)
			h.log.WithField("message_id", rec.MessageID).WithError(err).Error("record handler panicked")
		}
	}()
	return h.Handle(ctx, rec.Body)
}

// HandleSQSEvent is the Lambda entry point. Failed records are reported as
// batch item failures so only they are redelivered.
func (h *Handler) HandleSQSEvent(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	records := make([]Record, len(ev.Records))
	for i, msg := range ev.Records {
		records[i] = Record{MessageID: msg.MessageId, Body: msg.Body}
	}
	failed := h.ProcessBatch(ctx, records)

	resp := events.SQSEventResponse{BatchItemFailures: make([]events.SQSBatchItemFailure, 0, len(failed))}
	for _, id := range failed {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	return resp, nil
}
