package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voice-memories-go/internal/processor"
	"voice-memories-go/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var reclaim bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the queue and process jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			if reclaim {
				n, err := app.Repo.ResetStuckProcessing(cmd.Context(), time.Duration(app.Config.Worker.StuckAfterMinutes)*time.Minute)
				if err != nil {
					return fmt.Errorf("reclaim stuck memories: %w", err)
				}
				if n > 0 {
					app.Log.WithField("count", n).Warn("reset memories stuck in processing")
				}
			}
			return app.Consumer().Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&reclaim, "reclaim", false, "Reset memories stuck in processing before starting")
	return cmd
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var maxMessages int
	var waitSeconds int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Receive one batch, process it, and delete only the successful messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			msgs, err := app.Queue.Receive(cmd.Context(), maxMessages, waitSeconds)
			if err != nil {
				return fmt.Errorf("receive: %w", err)
			}
			if len(msgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No messages available")
				return nil
			}

			records := make([]processor.Record, len(msgs))
			byID := make(map[string]queue.Message, len(msgs))
			for i, msg := range msgs {
				records[i] = processor.Record{MessageID: msg.ID, Body: msg.Body}
				byID[msg.ID] = msg
			}
			failed := app.Handler.ProcessBatch(cmd.Context(), records)
			failedSet := make(map[string]bool, len(failed))
			for _, id := range failed {
				failedSet[id] = true
			}
			for id, msg := range byID {
				if failedSet[id] {
					continue
				}
				if err := app.Queue.Delete(cmd.Context(), msg.ReceiptHandle); err != nil {
					app.Log.WithField("message_id", id).WithError(err).Error("ack failed")
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d message(s), %d failed\n", len(msgs), len(failed))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxMessages, "max", 10, "Maximum messages to receive (1-10)")
	cmd.Flags().IntVar(&waitSeconds, "wait", 0, "Long-poll wait in seconds (0-20)")
	return cmd
}

func newReclaimCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Move memories stuck in processing back to uploading",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = time.Duration(app.Config.Worker.StuckAfterMinutes) * time.Minute
			}
			n, err := app.Repo.ResetStuckProcessing(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d memory(ies) older than %s\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only reset memories not updated for this long (default from config)")
	return cmd
}
