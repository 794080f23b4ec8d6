package reconnect

// DefaultMaxRetries is the retry budget used by DefaultConfig.
const DefaultMaxRetries = 3

// Config controls how a Connection recovers.
type Config struct {
	maxRetries        uint32
	backoff           BackoffStrategy
	retryOperation    bool
	retryOnQueryError bool
}

// NewConfig returns a config allowing maxRetries backed-off attempts after
// the immediate reconnect. Zero means reconnect once and give up if that
// fails.
func NewConfig(maxRetries uint32, backoff BackoffStrategy) Config {
	return Config{
		maxRetries:     maxRetries,
		backoff:        backoff,
		retryOperation: true,
	}
}

// DefaultConfig returns 3 retries with the default backoff.
func DefaultConfig() Config {
	return NewConfig(DefaultMaxRetries, DefaultBackoff())
}

// WithRetryOperation controls whether the failed operation is run again
// after a successful reconnect. Default true.
func (c Config) WithRetryOperation(retry bool) Config {
	c.retryOperation = retry
	return c
}

// WithRetryOnQueryError makes errors wrapping conn.ErrQueryFailed trigger a
// reconnect too. Default false.
func (c Config) WithRetryOnQueryError(retry bool) Config {
	c.retryOnQueryError = retry
	return c
}

// MaxRetries returns the number of backed-off attempts.
func (c Config) MaxRetries() uint32 { return c.maxRetries }

// Backoff returns the delay strategy.
func (c Config) Backoff() BackoffStrategy { return c.backoff }

// RetryOperation reports whether failed operations are retried.
func (c Config) RetryOperation() bool { return c.retryOperation }

// RetryOnQueryError reports whether query errors trigger a reconnect.
func (c Config) RetryOnQueryError() bool { return c.retryOnQueryError }
