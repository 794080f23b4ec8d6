package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/background"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// Checker defaults.
const (
	DefaultInterval         = 30 * time.Second
	DefaultPingTimeout      = 5 * time.Second
	DefaultFailureThreshold = 3

	// maxConcurrentPings bounds CheckAll fan-out.
	maxConcurrentPings = 16
)

// CheckConfig controls a Checker.
type CheckConfig struct {
	// Interval between periodic checks.
	Interval time.Duration

	// Thresholds classify successful pings.
	Thresholds Thresholds

	// PingTimeout bounds each ping.
	PingTimeout time.Duration

	// FailureThreshold is the number of consecutive failures after which
	// ShouldMarkUnhealthy reports true.
	FailureThreshold uint32
}

// DefaultCheckConfig returns a 30s interval, 5s ping timeout and a failure
// threshold of 3.
func DefaultCheckConfig() CheckConfig {
	return NewCheckConfig(DefaultInterval)
}

// NewCheckConfig returns the defaults with the given interval.
func NewCheckConfig(interval time.Duration) CheckConfig {
	return CheckConfig{
		Interval:         interval,
		Thresholds:       DefaultThresholds(),
		PingTimeout:      DefaultPingTimeout,
		FailureThreshold: DefaultFailureThreshold,
	}
}

// WithThresholds returns a copy with custom thresholds.
func (c CheckConfig) WithThresholds(t Thresholds) CheckConfig {
	c.Thresholds = t
	return c
}

// WithPingTimeout returns a copy with a custom ping timeout.
func (c CheckConfig) WithPingTimeout(d time.Duration) CheckConfig {
	c.PingTimeout = d
	return c
}

// WithFailureThreshold returns a copy with a custom failure threshold.
func (c CheckConfig) WithFailureThreshold(n uint32) CheckConfig {
	c.FailureThreshold = n
	return c
}

// Result is the outcome of one health check.
type Result struct {
	Target  string        `json:"target"`
	Status  Status        `json:"status"`
	Latency time.Duration `json:"latency"`

	// Err is the ping error for failed checks. Error carries its text for
	// serialised results.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`

	CheckedAt           time.Time `json:"checked_at"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
}

// Success builds the result of a successful ping.
func Success(target string, latency time.Duration, t Thresholds) Result {
	return Result{
		Target:    target,
		Status:    t.Classify(latency),
		Latency:   latency,
		CheckedAt: time.Now(),
	}
}

// Failure builds the result of a failed ping.
func Failure(target string, err error, consecutiveFailures uint32) Result {
	return Result{
		Target:              target,
		Status:              StatusUnhealthy,
		Err:                 err,
		Error:               err.Error(),
		CheckedAt:           time.Now(),
		ConsecutiveFailures: consecutiveFailures,
	}
}

// IsSuccess reports whether the ping succeeded.
func (r Result) IsSuccess() bool {
	return r.Err == nil
}

// Logger defines the logging interface for the checker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the checker's logger.
func WithLogger(logger Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// WithGroup sets the background group Start runs on. Defaults to
// background.Default().
func WithGroup(g *background.Group) Option {
	return func(c *Checker) { c.group = g }
}

// tracker holds the failure streak of one target.
type tracker struct {
	failures   uint32
	lastStatus Status
	latest     Result
	checked    bool
}

// Checker pings connections and tracks consecutive failures.
//
// Direct checks via CheckConnection are tracked under the checker itself
// (ConsecutiveFailures, LastStatus). Registered targets are tracked per
// name (Latest, TargetShouldMarkUnhealthy).
type Checker struct {
	cfg    CheckConfig
	logger Logger
	group  *background.Group

	mu       sync.Mutex
	own      tracker
	targets  map[string]conn.Connection
	trackers map[string]*tracker
	onResult func(Result)

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewChecker creates a checker with no targets.
func NewChecker(cfg CheckConfig, opts ...Option) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultPingTimeout
	}

	c := &Checker{
		cfg:      cfg,
		logger:   noopLogger{},
		own:      tracker{lastStatus: StatusHealthy},
		targets:  make(map[string]conn.Connection),
		trackers: make(map[string]*tracker),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.group == nil {
		c.group = background.Default()
	}
	return c
}

var (
	sharedMu       sync.Mutex
	sharedCheckers = make(map[CheckConfig]*Checker)
)

// NewSharedChecker returns the process-wide checker for cfg, creating it on
// first use. Callers asking for the same config share one instance.
func NewSharedChecker(cfg CheckConfig) *Checker {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if c, ok := sharedCheckers[cfg]; ok {
		return c
	}
	c := NewChecker(cfg)
	sharedCheckers[cfg] = c
	return c
}

// Config returns the checker's configuration.
func (c *Checker) Config() CheckConfig {
	return c.cfg
}

// SetOnResult registers a callback invoked after every check of a
// registered target.
func (c *Checker) SetOnResult(fn func(Result)) {
	c.mu.Lock()
	c.onResult = fn
	c.mu.Unlock()
}

// Register adds or replaces a target checked by CheckAll and the periodic
// loop.
func (c *Checker) Register(name string, target conn.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets[name] = target
	if _, ok := c.trackers[name]; !ok {
		c.trackers[name] = &tracker{lastStatus: StatusHealthy}
	}
}

// Unregister removes a target and its history.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.targets, name)
	delete(c.trackers, name)
}

// Targets returns the registered target names in sorted order.
func (c *Checker) Targets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.targets))
	for name := range c.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckConnection pings target once and updates the checker's own failure
// count.
func (c *Checker) CheckConnection(ctx context.Context, target conn.Connection) Result {
	latency, err := c.ping(ctx, target)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.own.record("", latency, err, c.cfg.Thresholds)
}

// Check pings one registered target. It returns false when name is not
// registered.
func (c *Checker) Check(ctx context.Context, name string) (Result, bool) {
	c.mu.Lock()
	target, ok := c.targets[name]
	c.mu.Unlock()
	if !ok {
		return Result{}, false
	}
	return c.checkTarget(ctx, name, target), true
}

// CheckAll pings every registered target concurrently and returns the
// results sorted by target name.
func (c *Checker) CheckAll(ctx context.Context) []Result {
	c.mu.Lock()
	names := make([]string, 0, len(c.targets))
	conns := make([]conn.Connection, 0, len(c.targets))
	for name, target := range c.targets {
		names = append(names, name)
		conns = append(conns, target)
	}
	c.mu.Unlock()

	results := make([]Result, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPings)
	for i := range names {
		g.Go(func() error {
			results[i] = c.checkTarget(gctx, names[i], conns[i])
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Target < results[j].Target })
	return results
}

func (c *Checker) checkTarget(ctx context.Context, name string, target conn.Connection) Result {
	latency, err := c.ping(ctx, target)

	c.mu.Lock()
	tr, ok := c.trackers[name]
	if !ok {
		// Unregistered while the ping was in flight.
		tr = &tracker{}
	}
	res := tr.record(name, latency, err, c.cfg.Thresholds)
	fn := c.onResult
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("health check failed",
			"target", name,
			"error", err,
			"consecutive_failures", res.ConsecutiveFailures,
		)
	} else {
		c.logger.Debug("health check",
			"target", name,
			"status", res.Status,
			"latency", latency,
		)
	}

	if fn != nil {
		c.deliver(fn, res)
	}
	return res
}

func (c *Checker) ping(ctx context.Context, target conn.Connection) (time.Duration, error) {
	pctx, cancel := context.WithTimeout(ctx, c.cfg.PingTimeout)
	defer cancel()
	return Ping(pctx, target)
}

func (c *Checker) deliver(fn func(Result), res Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("health result handler panic recovered",
				"target", res.Target,
				"panic", r,
			)
		}
	}()
	fn(res)
}

// record folds one ping outcome into the tracker. Caller holds c.mu.
func (t *tracker) record(name string, latency time.Duration, err error, th Thresholds) Result {
	var res Result
	if err != nil {
		t.failures++
		res = Failure(name, err, t.failures)
		res.Latency = latency
	} else {
		t.failures = 0
		res = Success(name, latency, th)
	}
	t.lastStatus = res.Status
	t.latest = res
	t.checked = true
	return res
}

// ConsecutiveFailures returns the failure streak of CheckConnection calls.
func (c *Checker) ConsecutiveFailures() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.own.failures
}

// LastStatus returns the status of the latest CheckConnection call, or
// StatusHealthy before the first one.
func (c *Checker) LastStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.own.lastStatus
}

// ShouldMarkUnhealthy reports whether CheckConnection has failed at least
// FailureThreshold times in a row.
func (c *Checker) ShouldMarkUnhealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.own.failures >= c.cfg.FailureThreshold
}

// TargetShouldMarkUnhealthy is ShouldMarkUnhealthy for a registered target.
func (c *Checker) TargetShouldMarkUnhealthy(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.trackers[name]
	return ok && tr.failures >= c.cfg.FailureThreshold
}

// ResetFailures clears the failure streaks of the checker and every target.
func (c *Checker) ResetFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.own.failures = 0
	for _, tr := range c.trackers {
		tr.failures = 0
	}
}

// Latest returns the most recent result for a registered target.
func (c *Checker) Latest(name string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.trackers[name]
	if !ok || !tr.checked {
		return Result{}, false
	}
	return tr.latest, true
}

// Start runs the periodic loop on the checker's background group. The
// first round of checks happens immediately.
func (c *Checker) Start() error {
	stop, done, err := c.begin()
	if err != nil {
		return err
	}

	if err := c.group.Go("health-checker", func(ctx context.Context) {
		c.loop(ctx, stop, done)
	}); err != nil {
		c.finish(done)
		return err
	}
	return nil
}

// Run runs the periodic loop on the calling goroutine until ctx is done or
// Stop is called.
func (c *Checker) Run(ctx context.Context) error {
	stop, done, err := c.begin()
	if err != nil {
		return err
	}
	c.loop(ctx, stop, done)
	return ctx.Err()
}

// Stop ends the periodic loop and waits for it to return. It is a no-op
// when the checker is not running.
func (c *Checker) Stop() {
	c.mu.Lock()
	if !c.running || c.stop == nil {
		c.mu.Unlock()
		return
	}
	close(c.stop)
	c.stop = nil
	done := c.done
	c.mu.Unlock()

	<-done
}

// IsRunning reports whether the periodic loop is active.
func (c *Checker) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Checker) begin() (stop, done chan struct{}, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil, nil, ErrAlreadyRunning
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	return c.stop, c.done, nil
}

func (c *Checker) finish(done chan struct{}) {
	c.mu.Lock()
	c.running = false
	c.stop = nil
	c.mu.Unlock()
	close(done)
}

func (c *Checker) loop(ctx context.Context, stop, done chan struct{}) {
	defer c.finish(done)

	c.logger.Info("health checker started", "interval", c.cfg.Interval)
	c.CheckAll(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			c.logger.Info("health checker stopped")
			return
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}
