// Package store owns the current role of the signed-in user. It loads the
// role from device storage, falls back to the server when nothing is stored,
// and reloads whenever a role.updated event arrives.
//
// Every failure is logged and swallowed; an undeterminable role leaves the
// store unset, which every check treats as "no access".
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/expenseflow-go/internal/rbac/domain"
	"github.com/expenseflow-go/internal/rbac/policy"
	"github.com/expenseflow-go/internal/rbac/source"
	"github.com/expenseflow-go/pkg/events"
	"github.com/expenseflow-go/pkg/logger"
	"github.com/expenseflow-go/pkg/metrics"
	"github.com/expenseflow-go/pkg/storage"
	"github.com/expenseflow-go/pkg/telemetry"
)

// Load outcomes, used as the metrics label.
const (
	OutcomeStored       = "stored"
	OutcomeFetched      = "fetched"
	OutcomeNoCredential = "no_credential"
	OutcomeStorageError = "storage_error"
	OutcomeFetchError   = "fetch_error"
	OutcomeNoSource     = "no_source"
	OutcomeSuperseded   = "superseded"
)

const (
	opSet    = "set"
	opRemove = "remove"
)

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// State is what consumers observe.
type State struct {
	Role    domain.Role
	Loading bool
}

type Store struct {
	config    Config
	storage   storage.KeyValue
	source    source.RoleSource
	evaluator *policy.Evaluator
	logger    logger.Logger
	tracer    trace.Tracer
	limiter   *rate.Limiter
	now       func() time.Time

	mu         sync.RWMutex
	role       domain.Role
	loading    bool
	generation uint64

	writeMu   sync.Mutex
	lastWrite chan struct{}

	subMu sync.Mutex
	subs  []events.Subscription

	listenMu  sync.Mutex
	listeners map[uint64]func(State)
	nextID    uint64
}

type Option func(*Store)

// WithClock replaces time.Now for credential expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.tracer = tracer
	}
}

// NewStore returns a store in the loading state with no role. src may be nil,
// in which case Load never falls back to the server.
func NewStore(cfg Config, kv storage.KeyValue, src source.RoleSource, evaluator *policy.Evaluator, log logger.Logger, opts ...Option) *Store {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	s := &Store{
		config:    cfg,
		storage:   kv,
		source:    src,
		evaluator: evaluator,
		logger:    log,
		tracer:    otel.Tracer(telemetry.TracerName),
		now:       time.Now,
		loading:   true,
		lastWrite: closedChan,
		listeners: make(map[uint64]func(State)),
	}

	if cfg.ReloadRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ReloadRate), cfg.ReloadBurst)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load resolves the role from storage, or from the server when storage holds
// none, and returns the resulting state. It never fails. Storage is read only
// after writes queued by earlier SetRole and ClearRole calls have landed. When
// SetRole, ClearRole or a newer Load runs before this one finishes, its result
// is discarded.
func (s *Store) Load(ctx context.Context) State {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "rbac.store.load")
	defer span.End()

	gen := s.beginLoad()

	var (
		role    domain.Role
		outcome string
	)
	if err := s.Flush(ctx); err != nil {
		// The queued writes carry the in-memory role, keep it.
		s.logger.Warn("Gave up waiting for queued role writes", "error", err)
		role, outcome = s.Role(), OutcomeStorageError
	} else {
		role, outcome = s.resolve(ctx)
	}

	if applied, persisted := s.finishLoad(ctx, gen, role, outcome == OutcomeFetched); applied {
		s.notify()
		<-persisted
		s.logger.Debug("Role loaded", "role", role, "outcome", outcome)
	} else {
		outcome = OutcomeSuperseded
		s.logger.Debug("Discarding superseded role load", "role", role)
	}

	span.SetAttributes(telemetry.RoleAttribute(role.String()), telemetry.OutcomeAttribute(outcome))
	metrics.RecordRoleLoad(outcome, time.Since(start).Seconds())

	return s.State()
}

func (s *Store) resolve(ctx context.Context) (domain.Role, string) {
	stored, err := s.storage.Get(ctx, s.config.RoleKey)
	switch {
	case err == nil:
		if role := domain.ParseRole(stored); role != domain.RoleNone {
			return role, OutcomeStored
		}
		if stored != "" {
			s.logger.Warn("Ignoring unrecognised stored role", "value", stored)
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		s.logger.Warn("Failed to read stored role", "error", err)
		return domain.RoleNone, OutcomeStorageError
	}

	return s.fetch(ctx)
}

func (s *Store) fetch(ctx context.Context) (domain.Role, string) {
	if s.source == nil {
		return domain.RoleNone, OutcomeNoSource
	}

	token, err := s.storage.Get(ctx, s.config.TokenKey)
	switch {
	case errors.Is(err, storage.ErrNotFound), err == nil && token == "":
		s.logger.Debug("No stored credential, skipping role fetch")
		return domain.RoleNone, OutcomeNoCredential
	case err != nil:
		s.logger.Warn("Failed to read stored credential", "error", err)
		return domain.RoleNone, OutcomeStorageError
	}

	if credentialExpired(token, s.now()) {
		s.logger.Warn("Stored credential has expired, skipping role fetch")
		return domain.RoleNone, OutcomeNoCredential
	}

	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}

	role, err := s.source.FetchRole(ctx, token)
	if err != nil {
		s.logger.Warn("Failed to fetch role from server", "error", err)
		return domain.RoleNone, OutcomeFetchError
	}

	return role, OutcomeFetched
}

func (s *Store) beginLoad() uint64 {
	s.mu.Lock()
	s.generation++
	s.loading = true
	gen := s.generation
	s.mu.Unlock()

	s.notify()
	return gen
}

// finishLoad applies role if gen is still current. A fetched role is queued
// for persistence under the same lock so no later SetRole can be overtaken.
func (s *Store) finishLoad(ctx context.Context, gen uint64, role domain.Role, persist bool) (bool, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false, nil
	}
	s.role = role
	s.loading = false

	if persist {
		return true, s.enqueue(ctx, opSet, role)
	}
	return true, closedChan
}

// Revalidate asks the server for the role even when one is stored and adopts
// it when it differs from the current role, persisting it like SetRole. A
// failed fetch keeps the current role. The result is discarded when SetRole,
// ClearRole, Load or another Revalidate changes the role first. Loading is
// left untouched.
func (s *Store) Revalidate(ctx context.Context) State {
	ctx, span := s.tracer.Start(ctx, "rbac.store.revalidate")
	defer span.End()

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	role, outcome := s.fetch(ctx)
	if outcome != OutcomeFetched {
		span.SetAttributes(telemetry.OutcomeAttribute(outcome))
		s.logger.Debug("Role revalidation skipped", "outcome", outcome)
		return s.State()
	}

	s.mu.Lock()
	switch {
	case gen != s.generation:
		s.mu.Unlock()
		outcome = OutcomeSuperseded
		s.logger.Debug("Discarding superseded role revalidation", "role", role)
	case role == s.role && !s.loading:
		s.mu.Unlock()
		s.logger.Debug("Role unchanged on server", "role", role)
	default:
		s.generation++
		previous := s.role
		s.role = role
		s.loading = false
		persisted := s.enqueue(ctx, opSet, role)
		s.mu.Unlock()

		s.notify()
		<-persisted
		s.logger.Info("Role changed on server", "previous", previous, "role", role)
	}

	span.SetAttributes(telemetry.RoleAttribute(role.String()), telemetry.OutcomeAttribute(outcome))
	return s.State()
}

// SetRole makes role current immediately and queues it for persistence. An
// unknown role clears the store instead.
func (s *Store) SetRole(ctx context.Context, role domain.Role) {
	if !role.Valid() {
		s.logger.Warn("Refusing unknown role, clearing instead", "role", string(role))
		s.ClearRole(ctx)
		return
	}

	s.assign(ctx, role, opSet)
	s.logger.Info("Role set", "role", role)
}

// ClearRole unsets the role immediately and queues removal from storage.
func (s *Store) ClearRole(ctx context.Context) {
	s.assign(ctx, domain.RoleNone, opRemove)
	s.logger.Info("Role cleared")
}

func (s *Store) assign(ctx context.Context, role domain.Role, op string) {
	s.mu.Lock()
	s.generation++
	s.role = role
	s.loading = false
	s.enqueue(ctx, op, role)
	s.mu.Unlock()

	s.notify()
}

// OnChange registers fn to run after every state change until the returned
// func is called. fn runs on the mutating goroutine and must not block;
// concurrent changes may be reported out of order, so fn should re-read
// State when it needs the latest value.
func (s *Store) OnChange(fn func(State)) func() {
	s.listenMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.listenMu.Unlock()

	return func() {
		s.listenMu.Lock()
		delete(s.listeners, id)
		s.listenMu.Unlock()
	}
}

func (s *Store) notify() {
	s.listenMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenMu.Unlock()

	if len(fns) == 0 {
		return
	}
	state := s.State()
	for _, fn := range fns {
		fn(state)
	}
}

// enqueue chains a storage write behind the previous one so writes land in
// call order. The returned channel closes when the write has finished.
func (s *Store) enqueue(ctx context.Context, op string, role domain.Role) <-chan struct{} {
	done := make(chan struct{})

	s.writeMu.Lock()
	prev := s.lastWrite
	s.lastWrite = done
	s.writeMu.Unlock()

	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		<-prev

		var err error
		if op == opSet {
			err = s.storage.Set(ctx, s.config.RoleKey, string(role))
		} else {
			err = s.storage.Remove(ctx, s.config.RoleKey)
		}
		if err != nil {
			s.logger.Warn("Failed to persist role", "op", op, "role", role, "error", err)
			metrics.RecordPersistFailure(op)
		}
	}()

	return done
}

// Flush waits until every queued persistence write has finished.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	last := s.lastWrite
	s.writeMu.Unlock()

	select {
	case <-last:
		return nil
	default:
	}

	select {
	case <-last:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch reloads the role on every role.updated event from sub until Close.
func (s *Store) Watch(sub events.Subscriber) error {
	subscription, err := sub.Subscribe(events.RoleUpdated, s.handleInvalidation)
	if err != nil {
		return fmt.Errorf("failed to subscribe to role updates: %w", err)
	}

	s.subMu.Lock()
	s.subs = append(s.subs, subscription)
	s.subMu.Unlock()
	return nil
}

func (s *Store) handleInvalidation(ctx context.Context, event events.Event) error {
	metrics.InvalidationsTotal.Inc()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("reload throttled: %w", err)
		}
	}

	s.logger.Info("Role invalidated, reloading", "event", event.ID)
	s.Load(ctx)
	return nil
}

// Close drops all subscriptions and waits for queued writes.
func (s *Store) Close(ctx context.Context) error {
	s.subMu.Lock()
	subs := s.subs
	s.subs = nil
	s.subMu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Role: s.role, Loading: s.loading}
}

func (s *Store) Role() domain.Role {
	return s.State().Role
}

func (s *Store) Loading() bool {
	return s.State().Loading
}

// Access binds the evaluator to the current role.
func (s *Store) Access() policy.Access {
	return s.evaluator.For(s.Role())
}

func (s *Store) HasPermission(permission string) bool {
	return s.Access().HasPermission(permission)
}

func (s *Store) CanPerformAction(action domain.Action, resource string) bool {
	return s.Access().CanPerformAction(action, resource)
}

func (s *Store) IsAtLeast(minRole domain.Role) bool {
	return s.Access().IsAtLeast(minRole)
}
