package pump

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-sqs-transport/envelope"
	"github.com/infigaming-com/go-sqs-transport/internal/worker"
	"github.com/infigaming-com/go-sqs-transport/queue"
	"github.com/infigaming-com/go-sqs-transport/util"
)

type pollerConfig struct {
	queueURL      string
	handler       Handler
	transactional bool
}

// poller runs the receive and process loop of one slot.
type poller struct {
	pump    *Pump
	cfg     pollerConfig
	slot    int
	cleanup *worker.Pool
	logger  *zap.Logger
}

// run returns ctx.Err() once cancelled; any other return is a fault.
func (w *poller) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := w.pump.queue.ReceiveMessages(ctx, w.cfg.queueURL, w.pump.opts.maxBatchSize, w.pump.opts.waitTime)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive from %s: %w", w.cfg.queueURL, err)
		}

		// the whole batch is settled even if cancellation fires midway or an
		// acknowledgement fails, so no received message is left invisible
		// until its timeout
		var ackErr error
		for _, m := range msgs {
			if err := w.process(ctx, m); err != nil && ackErr == nil {
				ackErr = err
			}
		}
		if ackErr != nil {
			return ackErr
		}
	}
}

// process settles one message. The returned error is an acknowledgement
// failure; the poller ends once the rest of its batch is settled.
func (w *poller) process(ctx context.Context, m queue.Message) error {
	start := time.Now()
	metrics := w.pump.opts.metrics
	metrics.OnMessageReceived()

	msgCtx := context.WithoutCancel(ctx)
	msgCtx = util.NativeMessageIdToCtx(msgCtx, m.MessageID)
	msgCtx = util.QueueUrlToCtx(msgCtx, w.cfg.queueURL)

	var (
		outcome  Outcome
		procErr  error
		complete *envelope.TransportMessage
	)

	env, err := w.pump.codec.Decode(msgCtx, m.Body)
	switch {
	case err != nil:
		outcome = OutcomePoison
		procErr = err
		w.logger.Warn("deleting poison message", zap.String("sqs_message_id", m.MessageID), zap.Error(err))
	case env.Message.Expired(m.SentTimestamp, w.pump.opts.now()):
		outcome = OutcomeExpired
		w.logger.Warn("discarding expired message",
			zap.String("message_id", env.ID),
			zap.Time("sent", m.SentTimestamp),
			zap.Duration("time_to_be_received", env.Message.TimeToBeReceived))
	default:
		complete = env.Message
		handlerCtx := util.MessageIdToCtx(msgCtx, env.ID)
		if cid := env.Message.Headers[envelope.HeaderCorrelationID]; cid != "" {
			handlerCtx = util.CorrelationIdToCtx(handlerCtx, cid)
		}
		if err := w.invoke(handlerCtx, env.Message); err != nil {
			outcome = OutcomeFailure
			procErr = err
			w.logger.Debug("handler failed", zap.String("message_id", env.ID), zap.Error(err))
		} else {
			outcome = OutcomeSuccess
		}
	}

	ackErr := w.acknowledge(msgCtx, m, env, outcome)
	metrics.OnMessageProcessed(outcome.String(), time.Since(start))

	completionErr := procErr
	if completionErr == nil {
		completionErr = ackErr
	}
	w.pump.opts.onComplete(complete, completionErr)

	return ackErr
}

func (w *poller) invoke(ctx context.Context, msg *envelope.TransportMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewHandlerError(ErrCodeHandlerPanic, fmt.Sprintf("handler panicked on %s: %v", msg.ID, r), nil)
		}
	}()
	if err := w.cfg.handler.Handle(ctx, msg); err != nil {
		return NewHandlerError(ErrCodeHandlerFailed, fmt.Sprintf("handler failed on %s", msg.ID), err)
	}
	return nil
}

// acknowledge deletes the message unless a transactional handler failed, in
// which case the message is made visible again right away.
func (w *poller) acknowledge(ctx context.Context, m queue.Message, env *envelope.Envelope, outcome Outcome) error {
	ackCtx, cancel := context.WithTimeout(ctx, w.pump.opts.ackTimeout)
	defer cancel()

	if outcome == OutcomeFailure && w.cfg.transactional {
		if err := w.pump.queue.ChangeMessageVisibility(ackCtx, w.cfg.queueURL, m.ReceiptHandle, 0); err != nil {
			return fmt.Errorf("reset visibility of %s: %w", m.MessageID, err)
		}
		w.pump.opts.metrics.OnVisibilityReset()
		return nil
	}

	if err := w.pump.queue.DeleteMessage(ackCtx, w.cfg.queueURL, m.ReceiptHandle); err != nil {
		return fmt.Errorf("delete %s: %w", m.MessageID, err)
	}
	if env.HasExternalBody() {
		w.deleteBody(env.ID)
	}
	return nil
}

// deleteBody removes an external body in the background. Failures are only
// logged: the message is already gone from the queue and the bucket
// lifecycle rule removes leftovers.
func (w *poller) deleteBody(messageID string) {
	blobs := w.pump.blobs
	if blobs == nil {
		return
	}
	key := w.pump.codec.BlobKey(messageID)
	logger := w.logger
	metrics := w.pump.opts.metrics
	timeout := w.pump.opts.cleanupTimeout

	err := w.cleanup.TrySubmit(context.Background(), func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := blobs.DeleteFile(ctx, key); err != nil {
			metrics.OnCleanupFailed()
			logger.Warn("couldn't delete message body, it will be aged out by the bucket lifecycle policy",
				zap.String("key", key), zap.Error(err))
		}
	})
	if err != nil {
		metrics.OnCleanupFailed()
		logger.Warn("couldn't schedule message body delete, it will be aged out by the bucket lifecycle policy",
			zap.String("key", key), zap.Error(err))
	}
}
