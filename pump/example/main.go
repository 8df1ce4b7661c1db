package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/coocood/freecache"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-sqs-transport/cache"
	"github.com/infigaming-com/go-sqs-transport/config"
	"github.com/infigaming-com/go-sqs-transport/envelope"
	"github.com/infigaming-com/go-sqs-transport/filestore"
	"github.com/infigaming-com/go-sqs-transport/locker"
	"github.com/infigaming-com/go-sqs-transport/observability/metrics"
	"github.com/infigaming-com/go-sqs-transport/provision"
	"github.com/infigaming-com/go-sqs-transport/pump"
	"github.com/infigaming-com/go-sqs-transport/queue"
	"github.com/infigaming-com/go-sqs-transport/util"
)

const serviceName = "sqs-pump-example"

func main() {
	envPath := flag.String("env", "pump/example/.env", "dotenv file to load")
	send := flag.Int("send", 0, "number of sample messages to send before consuming")
	stopTimeout := flag.Duration("stop-timeout", 30*time.Second, "time allowed for in-flight messages on shutdown")
	flag.Parse()

	envErr := godotenv.Load(*envPath)

	lg, undo, err := util.NewLogger(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer undo()

	if envErr != nil {
		// variables may be set another way
		lg.Warn("failed to load .env file", zap.String("path", *envPath), zap.Error(envErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, lg, *send, *stopTimeout); err != nil {
		lg.Error("pump example failed", zap.Error(err))
		undo()
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger, send int, stopTimeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.InputQueue == "" {
		return fmt.Errorf("SQS_INPUT_QUEUE is required")
	}

	awsCfg, err := cfg.AWS(ctx)
	if err != nil {
		return err
	}

	urlCache := cache.NewFreeCache(freecache.NewCache(1024 * 1024))
	q := queue.NewWithEndpoint(awsCfg, cfg.SQSEndpoint,
		queue.WithLogger(lg),
		queue.WithURLCache(urlCache, 10*time.Minute),
	)

	var (
		blobs   filestore.FileStore
		buckets provision.BucketAPI
	)
	if cfg.S3BucketForLargeMessages != "" {
		blobs = filestore.NewS3FileStore(awsCfg, cfg.S3BucketForLargeMessages, cfg.S3Endpoint)
		buckets = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
				o.UsePathStyle = true
			}
		})
	}

	creatorOpts := []provision.Option{
		provision.WithLogger(lg),
		provision.WithQueueNamePrefix(cfg.QueueNamePrefix),
		provision.WithBucket(cfg.S3BucketForLargeMessages, cfg.S3KeyPrefix),
		provision.WithRegion(cfg.Region),
		provision.WithMaxTTLDays(cfg.MaxTTLDays),
	}
	if cfg.RedisAddr != "" {
		client, err := locker.NewRedisClient(ctx, &locker.RedisLockerConfig{Addr: cfg.RedisAddr})
		if err != nil {
			return err
		}
		defer client.Close()
		creatorOpts = append(creatorOpts, provision.WithLocker(locker.NewRedisLocker(lg, client)))
	}

	creator := provision.New(q, buckets, creatorOpts...)
	if err := creator.CreateQueues(ctx, provision.Bindings{Receiving: []string{cfg.InputQueue}}); err != nil {
		return err
	}

	inputQueue, err := queue.QueueName(cfg.QueueNamePrefix, cfg.InputQueue)
	if err != nil {
		return err
	}

	var p *pump.Pump
	pumpOpts := []pump.Option{
		pump.WithLogger(lg),
		pump.WithMaxBatchSize(cfg.MaxReceiveMessageBatchSize),
		pump.WithOnComplete(func(msg *envelope.TransportMessage, err error) {
			if err != nil {
				lg.Debug("message completed with error", zap.Bool("decoded", msg != nil), zap.Error(err))
			}
		}),
	}

	if cfg.OTLPEndpoint != "" || cfg.OTLPGRPCEndpoint != "" {
		exporter, shutdown, err := metrics.NewMetricExporter(ctx,
			metrics.WithServiceName(serviceName),
			metrics.WithOTLPEndpoint(cfg.OTLPEndpoint),
			metrics.WithOTLPGRPCEndpoint(cfg.OTLPGRPCEndpoint),
		)
		if err != nil {
			return err
		}
		defer shutdown()

		hook, err := metrics.NewPumpMetrics(exporter.Meter(), inputQueue, func() int64 {
			return int64(p.Stats().Active)
		})
		if err != nil {
			return err
		}
		pumpOpts = append(pumpOpts, pump.WithMetrics(hook))
	}

	codec := envelope.NewCodec(blobs, cfg.S3KeyPrefix)
	p = pump.New(q, codec, blobs, pumpOpts...)

	handler := pump.HandlerFunc(func(ctx context.Context, msg *envelope.TransportMessage) error {
		lg.Info("handling message",
			zap.String("message_id", msg.ID),
			zap.Int("body_bytes", len(msg.Body)),
			zap.Any("headers", msg.Headers))
		return nil
	})
	onError := func(ctx context.Context, ec pump.ErrorContext) pump.ErrorHandleResult {
		lg.Warn("message processing failed", zap.Int("attempts", ec.Attempts), zap.Error(ec.Err))
		return pump.ErrorRetryRequired
	}

	if err := p.Init(ctx, handler, onError, pump.Settings{
		InputQueue:     inputQueue,
		PurgeOnStartup: cfg.PurgeOnStartup,
		Transactional:  cfg.Transactional,
	}); err != nil {
		return err
	}

	if send > 0 {
		if err := sendSamples(ctx, q, envelope.NewEncoder(blobs, cfg.S3KeyPrefix), p.QueueURL(), send); err != nil {
			return err
		}
		lg.Info("sent sample messages", zap.Int("count", send))
	}

	if err := p.Start(cfg.MaxConcurrency); err != nil {
		return err
	}
	lg.Info("pump running, press Ctrl+C to stop", zap.String("queue", inputQueue), zap.Int("concurrency", cfg.MaxConcurrency))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		return err
	}
	lg.Info("pump stopped", zap.Any("stats", p.Stats()))
	return nil
}

func sendSamples(ctx context.Context, q queue.Client, enc *envelope.Encoder, queueURL string, n int) error {
	for i := 0; i < n; i++ {
		body, err := enc.Encode(ctx, &envelope.TransportMessage{
			Headers:          map[string]string{"MessageType": "sample.greeting"},
			Body:             []byte(fmt.Sprintf(`{"n":%d}`, i)),
			TimeToBeReceived: time.Hour,
		})
		if err != nil {
			return err
		}
		if _, err := q.SendMessage(ctx, queueURL, body); err != nil {
			return err
		}
	}
	return nil
}
