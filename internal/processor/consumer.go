package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/queue"
)

// ConsumerConfig tunes the polling loop.
type ConsumerConfig struct {
	MaxMessages  int
	WaitSeconds  int
	Concurrency  int
	ErrorBackoff time.Duration
	// IdleDelay spaces out empty polls when WaitSeconds is zero.
	IdleDelay time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.MaxMessages < 1 {
		c.MaxMessages = 1
	}
	if c.MaxMessages > 10 {
		c.MaxMessages = 10
	}
	if c.WaitSeconds < 0 {
		c.WaitSeconds = 0
	}
	if c.WaitSeconds > 20 {
		c.WaitSeconds = 20
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = 500 * time.Millisecond
	}
	return c
}

// Consumer is the long-running queue worker.
type Consumer struct {
	queue   queue.Queue
	handler *Handler
	log     *logger.Logger
	cfg     ConsumerConfig
}

func NewConsumer(q queue.Queue, handler *Handler, log *logger.Logger, cfg ConsumerConfig) *Consumer {
	return &Consumer{
		queue:   q,
		handler: handler,
		log:     log.Component("consumer"),
		cfg:     cfg.withDefaults(),
	}
}

// PollOnce receives up to maxMessages messages, long-polling for waitSeconds.
func (c *Consumer) PollOnce(ctx context.Context, maxMessages, waitSeconds int) ([]queue.Message, error) {
	return c.queue.Receive(ctx, maxMessages, waitSeconds)
}

// Ack deletes the message. It is called at most once per delivery.
func (c *Consumer) Ack(ctx context.Context, msg queue.Message) error {
	return c.queue.Delete(ctx, msg.ReceiptHandle)
}

// ProcessMessage handles one delivery and acknowledges it on success. It
// reports whether the message was acknowledged. Failures leave the message for
// redelivery after its visibility timeout.
func (c *Consumer) ProcessMessage(ctx context.Context, msg queue.Message) (acked bool) {
	log := c.log.WithField("message_id", msg.ID).WithField("receive_count", msg.ReceiveCount)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("message handler panicked, leaving for redelivery")
			acked = false
		}
	}()

	if err := c.handler.Handle(ctx, msg.Body); err != nil {
		log.WithError(err).Warn("message failed, leaving for redelivery")
		return false
	}
	if err := c.Ack(ctx, msg); err != nil {
		if errors.Is(err, queue.ErrStaleReceipt) {
			log.Warn("receipt expired before ack, message will be redelivered")
		} else {
			log.WithError(err).Error("ack failed")
		}
		return false
	}
	return true
}

// Run polls until ctx is cancelled. Each message runs on its own goroutine and
// the loop only asks for as many messages as there are free slots, so a slow
// job never stops polling. On shutdown, in-flight runs continue on a detached
// context and Run waits for them before returning.
func (c *Consumer) Run(ctx context.Context) error {
	slots := make(chan struct{}, c.cfg.Concurrency)
	runCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup

	c.log.WithField("concurrency", c.cfg.Concurrency).Info("consumer started")
	defer func() {
		wg.Wait()
		c.log.Info("consumer stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case slots <- struct{}{}:
		}
		free := 1
		for free < c.cfg.MaxMessages {
			select {
			case slots <- struct{}{}:
				free++
				continue
			default:
			}
			break
		}

		msgs, err := c.PollOnce(ctx, free, c.cfg.WaitSeconds)
		for i := len(msgs); i < free; i++ {
			<-slots
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.WithError(err).Error("poll failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.ErrorBackoff):
			}
			continue
		}
		if len(msgs) == 0 && c.cfg.WaitSeconds == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.IdleDelay):
			}
			continue
		}

		for _, msg := range msgs {
			wg.Add(1)
			go func(msg queue.Message) {
				defer wg.Done()
				defer func() { <-slots }()
				c.ProcessMessage(runCtx, msg)
			}(msg)
		}
	}
}
