package bootstrap_test

import (
	"context"
	"testing"
	"time"

	"voice-memories-go/internal/bootstrap"
	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/testsupport"
	"voice-memories-go/internal/types"
)

func TestLocalModeEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	app, err := bootstrap.New(ctx, cfg, logger.Discard())
	if err != nil {
		t.Fatalf("bootstrap.New: %v", err)
	}
	defer app.Close()

	updates, cancel, err := app.Subscriber.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	up, err := app.Memories.Upload(ctx, "standup.m4a", []byte("fake audio"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !up.Enqueued || up.Memory.Status != types.StatusProcessing {
		t.Fatalf("unexpected upload result %+v", up)
	}

	consumer := app.Consumer()
	msgs, err := consumer.PollOnce(ctx, 1, 0)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("PollOnce: %d %v", len(msgs), err)
	}
	if !consumer.ProcessMessage(ctx, msgs[0]) {
		t.Fatal("message should be acknowledged")
	}

	got, err := app.Memories.Get(ctx, up.Memory.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != types.StatusReady || got.Transcript == nil || !got.HasSummary() {
		t.Fatalf("memory not finished: %+v", got)
	}

	var sawReady bool
	timeout := time.After(2 * time.Second)
	for !sawReady {
		select {
		case ev := <-updates:
			if ev.MemoryID == up.Memory.ID && ev.Status == types.StatusReady {
				sawReady = true
			}
		case <-timeout:
			t.Fatal("no ready event published")
		}
	}
}

func TestTimeoutsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.TranscribeTimeout = 7
	if got := bootstrap.Timeouts(cfg).Transcribe; got != 7*time.Second {
		t.Fatalf("Transcribe timeout = %v", got)
	}
}
