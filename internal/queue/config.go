package queue

import (
	"time"

	"github.com/ternarybob/autoclass/internal/common"
)

// Config holds configuration for the queue manager and job processor
type Config struct {
	// PollInterval is how often workers poll for messages
	PollInterval time.Duration

	// Concurrency is the number of concurrent workers
	Concurrency int

	// VisibilityTimeout is the message visibility timeout for redelivery
	VisibilityTimeout time.Duration

	// MaxReceive is the maximum times a message can be received before it is dropped
	MaxReceive int

	// QueueName prefixes every key the queue writes to badger
	QueueName string

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewDefaultConfig creates a queue configuration with sensible defaults
func NewDefaultConfig() Config {
	return Config{
		PollInterval:      1 * time.Second,
		Concurrency:       4,
		VisibilityTimeout: 5 * time.Minute,
		MaxReceive:        5,
		QueueName:         "autoclass",
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        5 * time.Minute,
	}
}

// NewConfig converts the [queue] section, falling back to defaults for unparsable durations
func NewConfig(c common.QueueConfig) Config {
	def := NewDefaultConfig()
	cfg := Config{
		PollInterval:      common.ParseDuration(c.PollInterval, def.PollInterval),
		Concurrency:       c.Concurrency,
		VisibilityTimeout: common.ParseDuration(c.VisibilityTimeout, def.VisibilityTimeout),
		MaxReceive:        c.MaxReceive,
		QueueName:         c.QueueName,
		InitialBackoff:    common.ParseDuration(c.InitialBackoff, def.InitialBackoff),
		MaxBackoff:        common.ParseDuration(c.MaxBackoff, def.MaxBackoff),
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxReceive < 1 {
		cfg.MaxReceive = def.MaxReceive
	}
	if cfg.QueueName == "" {
		cfg.QueueName = def.QueueName
	}
	return cfg
}

// RetryPolicy builds the task retry policy from the backoff settings
func (c Config) RetryPolicy() *RetryPolicy {
	p := NewRetryPolicy()
	p.MaxAttempts = c.MaxReceive
	p.InitialBackoff = c.InitialBackoff
	p.MaxBackoff = c.MaxBackoff
	return p
}
