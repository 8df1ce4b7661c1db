package queue

import (
	"time"

	"github.com/infigaming-com/go-sqs-transport/cache"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	logger   *zap.Logger
	urlCache cache.Cache
	urlTTL   time.Duration
}

func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
		urlTTL: 10 * time.Minute,
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithURLCache memoizes queue name to URL lookups in c for ttl.
func WithURLCache(c cache.Cache, ttl time.Duration) Option {
	return func(o *options) {
		if c != nil {
			o.urlCache = c
		}
		if ttl > 0 {
			o.urlTTL = ttl
		}
	}
}
