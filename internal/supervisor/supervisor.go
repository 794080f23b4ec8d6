package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/background"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/health"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/pool"
	"github.com/nerrad567/gray-logic-dbkeeper/internal/reconnect"
)

// resetTimeout bounds a reset triggered over MQTT.
const resetTimeout = 30 * time.Second

// Logger defines the logging interface for the supervisor.
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

// Publisher is the MQTT surface the supervisor needs. *mqtt.Client
// satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Metrics is the InfluxDB surface the supervisor needs. *influxdb.Client
// satisfies it.
type Metrics interface {
	WriteHealth(s influxdb.HealthSample)
	WritePoolStats(s influxdb.PoolSample)
	WriteReconnectEvent(target, kind string, attempt int, at time.Time)
}

// Broadcaster fans payloads out to live subscribers such as WebSocket
// clients. *api.Hub satisfies it.
type Broadcaster interface {
	Broadcast(channel, target string, payload any)
}

// Broadcast channels.
const (
	ChannelHealth = "target.health"
	ChannelPool   = "target.pool"
	ChannelEvent  = "target.event"
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithPublisher publishes results and events to MQTT and accepts reset
// commands.
func WithPublisher(p Publisher) Option {
	return func(s *Supervisor) { s.publisher = p }
}

// WithMetrics writes results and pool stats to InfluxDB.
func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithBroadcaster streams results and events to live subscribers.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Supervisor) { s.broadcaster = b }
}

// WithGroup runs checker and reaper loops on g instead of a private group.
func WithGroup(g *background.Group) Option {
	return func(s *Supervisor) { s.group = g }
}

// WithFactoryBuilder replaces DriverFactory.
func WithFactoryBuilder(b FactoryBuilder) Option {
	return func(s *Supervisor) { s.build = b }
}

// Target is one supervised database.
type Target struct {
	Name   string
	Driver string

	pool    *pool.Pool
	monitor *reconnect.Connection
}

// Pool returns the target's connection pool.
func (t *Target) Pool() *pool.Pool {
	return t.pool
}

// Monitor returns the connection used for health checks.
func (t *Target) Monitor() *reconnect.Connection {
	return t.monitor
}

// Supervisor owns the pools, monitors and health checker for every
// configured target.
type Supervisor struct {
	logger      Logger
	publisher   Publisher
	metrics     Metrics
	broadcaster Broadcaster
	group       *background.Group
	ownGroup    bool
	build       FactoryBuilder

	checker *health.Checker
	targets map[string]*Target
	names   []string

	mu      sync.Mutex
	started bool
	closed  bool
}

// New builds every target in cfg. Monitors connect eagerly; a target that
// is unreachable at startup gets a lazy monitor that keeps retrying from the
// health loop.
func New(ctx context.Context, cfg *config.Config, logger Logger, opts ...Option) (*Supervisor, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Supervisor{
		logger:  logger,
		build:   DriverFactory,
		targets: make(map[string]*Target, len(cfg.Targets)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.group == nil {
		s.group = background.New()
		s.group.SetLogger(logger)
		s.ownGroup = true
	}

	s.checker = health.NewChecker(checkConfig(cfg.Health),
		health.WithLogger(logger),
		health.WithGroup(s.group),
	)
	s.checker.SetOnResult(s.onResult)

	for _, tc := range cfg.Targets {
		t, err := s.buildTarget(ctx, tc)
		if err != nil {
			s.closeTargets()
			return nil, fmt.Errorf("target %q: %w", tc.Name, err)
		}
		s.targets[t.Name] = t
		s.names = append(s.names, t.Name)
		s.checker.Register(t.Name, t.monitor)
	}
	sort.Strings(s.names)

	return s, nil
}

func (s *Supervisor) buildTarget(ctx context.Context, tc config.TargetConfig) (*Target, error) {
	base, err := s.build(tc)
	if err != nil {
		return nil, err
	}
	pcfg, err := poolConfig(tc.Pool)
	if err != nil {
		return nil, err
	}
	rcfg := reconnectConfig(tc.Reconnect)

	onEvent := s.eventHandler(tc.Name)

	pooled := reconnect.NewFactory(base, rcfg)
	pooled.SetLogger(s.logger)
	pooled.SetOnEvent(onEvent)

	monitor, err := reconnect.New(ctx, base, rcfg)
	if err != nil {
		s.logger.Warn("target unreachable at startup, will keep retrying",
			"target", tc.Name,
			"error", Describe(err),
		)
		monitor = reconnect.Lazy(base, tc.Driver, rcfg)
	}
	monitor.SetLogger(s.logger)
	monitor.SetOnEvent(onEvent)

	return &Target{
		Name:   tc.Name,
		Driver: tc.Driver,
		pool: pool.New(pcfg, pooled,
			pool.WithLogger(s.logger),
			pool.WithGroup(s.group),
			pool.WithName(tc.Name),
		),
		monitor: monitor,
	}, nil
}

// Targets returns the target names in sorted order.
func (s *Supervisor) Targets() []string {
	return append([]string(nil), s.names...)
}

// Target returns the named target, or nil.
func (s *Supervisor) Target(name string) *Target {
	return s.targets[name]
}

// Pool returns the named target's pool, or nil.
func (s *Supervisor) Pool(name string) *pool.Pool {
	if t := s.targets[name]; t != nil {
		return t.pool
	}
	return nil
}

// Checker returns the health checker.
func (s *Supervisor) Checker() *health.Checker {
	return s.checker
}

// Start warms every pool, subscribes to reset commands and starts the
// periodic health loop. A pool that cannot be warmed is logged, not fatal.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	for _, name := range s.names {
		if err := s.targets[name].pool.Warm(ctx); err != nil {
			s.logger.Warn("pool warm-up failed",
				"target", name,
				"error", Describe(err),
			)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Subscribe(mqtt.Topics{}.AllTargetResets(), 1, s.handleCommand); err != nil {
			s.logger.Warn("reset commands unavailable", "error", err)
		}
	}

	if err := s.checker.Start(); err != nil {
		return fmt.Errorf("starting health checker: %w", err)
	}
	s.logger.Info("supervisor started", "targets", len(s.names))
	return nil
}

// Check pings one target now and returns its result.
func (s *Supervisor) Check(ctx context.Context, name string) (health.Result, error) {
	res, ok := s.checker.Check(ctx, name)
	if !ok {
		return health.Result{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return res, nil
}

// Status returns a snapshot of the named target.
func (s *Supervisor) Status(name string) (TargetStatus, bool) {
	t := s.targets[name]
	if t == nil {
		return TargetStatus{}, false
	}

	st := TargetStatus{
		Name:       t.Name,
		Driver:     t.Driver,
		State:      t.monitor.State().String(),
		Reconnects: t.monitor.Reconnects(),
		Pool:       newPoolPayload(t.Name, t.pool.Stats(), time.Now()),
	}
	if res, ok := s.checker.Latest(name); ok {
		hp := newHealthPayload(t, res)
		st.Health = &hp
	}
	return st, true
}

// CheckNow runs one round of checks outside the periodic loop and returns
// the results sorted by target.
func (s *Supervisor) CheckNow(ctx context.Context) []health.Result {
	return s.checker.CheckAll(ctx)
}

// Reset revives the named target's monitor and drops its idle pooled
// connections so the next acquire opens fresh ones.
func (s *Supervisor) Reset(ctx context.Context, name string) error {
	t := s.targets[name]
	if t == nil {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}

	s.logger.Info("resetting target", "target", name, "state", t.monitor.State())
	t.pool.CloseIdle()
	if err := t.monitor.Reset(ctx); err != nil {
		return fmt.Errorf("resetting %q: %w", name, err)
	}
	return nil
}

// Close stops the health loop, closes pools and monitors and waits for
// background work to finish or ctx to expire.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.checker.Stop()
	err := s.closeTargets()

	if s.ownGroup {
		err = errors.Join(err, s.group.Shutdown(ctx))
	}
	s.logger.Info("supervisor stopped")
	return err
}

func (s *Supervisor) closeTargets() error {
	var errs []error
	for _, t := range s.targets {
		s.checker.Unregister(t.Name)
		if err := t.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing pool %q: %w", t.Name, err))
		}
		if err := t.monitor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing monitor %q: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Supervisor) handleCommand(topic string, _ []byte) error {
	name, command, ok := mqtt.Topics{}.TargetFromCommand(topic)
	if !ok || command != "reset" {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()
	return s.Reset(ctx, name)
}
