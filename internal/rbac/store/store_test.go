package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/expenseflow-go/internal/rbac/domain"
	"github.com/expenseflow-go/internal/rbac/policy"
	"github.com/expenseflow-go/internal/rbac/source"
	"github.com/expenseflow-go/pkg/events"
	"github.com/expenseflow-go/pkg/logger"
	"github.com/expenseflow-go/pkg/storage"
)

// MockRoleSource is a mock implementation of source.RoleSource
type MockRoleSource struct {
	mock.Mock
}

func (m *MockRoleSource) FetchRole(ctx context.Context, token string) (domain.Role, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(domain.Role), args.Error(1)
}

// blockingSource holds FetchRole until a role is sent on release.
type blockingSource struct {
	started chan struct{}
	release chan domain.Role
	once    sync.Once
}

func newBlockingSource() *blockingSource {
	return &blockingSource{
		started: make(chan struct{}),
		release: make(chan domain.Role),
	}
}

func (b *blockingSource) FetchRole(ctx context.Context, _ string) (domain.Role, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case role := <-b.release:
		return role, nil
	case <-ctx.Done():
		return domain.RoleNone, ctx.Err()
	}
}

// faultyStorage fails the selected operations.
type faultyStorage struct {
	*storage.MemoryStore
	failGet bool
	failSet bool
}

var errStorage = errors.New("storage unavailable")

func (f *faultyStorage) Get(ctx context.Context, key string) (string, error) {
	if f.failGet {
		return "", errStorage
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *faultyStorage) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errStorage
	}
	return f.MemoryStore.Set(ctx, key, value)
}

// slowStorage delays writes so they are still queued when the next call runs.
type slowStorage struct {
	*storage.MemoryStore
	delay time.Duration
}

func (s *slowStorage) Set(ctx context.Context, key, value string) error {
	time.Sleep(s.delay)
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *slowStorage) Remove(ctx context.Context, key string) error {
	time.Sleep(s.delay)
	return s.MemoryStore.Remove(ctx, key)
}

func newEvaluator(t *testing.T) *policy.Evaluator {
	t.Helper()
	e, err := policy.NewEvaluator(nil)
	require.NoError(t, err)
	return e
}

func newTestStore(t *testing.T, kv storage.KeyValue, src source.RoleSource) *Store {
	t.Helper()
	return NewStore(Config{FetchTimeout: time.Second}, kv, src, newEvaluator(t), nil)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func stored(t *testing.T, kv storage.KeyValue) (string, bool) {
	t.Helper()
	value, err := kv.Get(context.Background(), DefaultRoleKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	require.NoError(t, err)
	return value, true
}

func TestNewStore_InitialState(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(), nil)

	state := s.State()
	assert.True(t, state.Loading)
	assert.Equal(t, domain.RoleNone, state.Role)
	assert.False(t, s.HasPermission(domain.PermViewOwnData))
	assert.False(t, s.IsAtLeast(domain.RoleEmployee))
}

func TestLoad_StoredRole(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "MANAGER"))
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := new(MockRoleSource)
	s := newTestStore(t, kv, src)

	state := s.Load(ctx)

	assert.Equal(t, State{Role: domain.RoleManager, Loading: false}, state)
	assert.True(t, s.Access().IsManager())
	src.AssertNotCalled(t, "FetchRole", mock.Anything, mock.Anything)
}

func TestLoad_Idempotent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "ADMIN"))

	s := newTestStore(t, kv, nil)

	first := s.Load(ctx)
	second := s.Load(ctx)

	assert.Equal(t, first, second)
	assert.Equal(t, domain.RoleAdmin, second.Role)
}

func TestLoad_FetchesWhenNothingStored(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := new(MockRoleSource)
	src.On("FetchRole", mock.Anything, "opaque").Return(domain.RoleAdmin, nil).Once()

	s := newTestStore(t, kv, src)
	state := s.Load(ctx)

	assert.Equal(t, domain.RoleAdmin, state.Role)
	assert.False(t, state.Loading)

	require.NoError(t, s.Flush(ctx))
	value, ok := stored(t, kv)
	assert.True(t, ok)
	assert.Equal(t, "ADMIN", value)
	src.AssertExpectations(t)
}

func TestLoad_UnrecognisedStoredValueFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "manager"))
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := new(MockRoleSource)
	src.On("FetchRole", mock.Anything, "opaque").Return(domain.RoleEmployee, nil).Once()

	s := newTestStore(t, kv, src)
	state := s.Load(ctx)

	assert.Equal(t, domain.RoleEmployee, state.Role)
	require.NoError(t, s.Flush(ctx))
	value, _ := stored(t, kv)
	assert.Equal(t, "EMPLOYEE", value)
}

func TestLoad_UnrecognisedStoredValueWithoutCredential(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "OWNER"))

	s := newTestStore(t, kv, new(MockRoleSource))
	state := s.Load(ctx)

	assert.Equal(t, domain.RoleNone, state.Role)
	assert.False(t, state.Loading)
}

func TestLoad_NoCredential(t *testing.T) {
	src := new(MockRoleSource)
	s := newTestStore(t, storage.NewMemoryStore(), src)

	state := s.Load(context.Background())

	assert.Equal(t, State{Role: domain.RoleNone, Loading: false}, state)
	src.AssertNotCalled(t, "FetchRole", mock.Anything, mock.Anything)
}

func TestLoad_FetchErrorLeavesUnset(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := new(MockRoleSource)
	src.On("FetchRole", mock.Anything, "opaque").Return(domain.RoleNone, errors.New("network down"))

	s := newTestStore(t, kv, src)
	state := s.Load(ctx)

	assert.Equal(t, domain.RoleNone, state.Role)
	assert.False(t, state.Loading)

	require.NoError(t, s.Flush(ctx))
	_, ok := stored(t, kv)
	assert.False(t, ok)
}

func TestLoad_ExpiredCredentialSkipsFetch(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	// Live by the wall clock, expired by the store's clock.
	issued := time.Now()
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, signedToken(t, issued.Add(time.Hour))))

	src := new(MockRoleSource)
	s := NewStore(Config{}, kv, src, newEvaluator(t), nil, WithClock(func() time.Time {
		return issued.Add(2 * time.Hour)
	}))

	state := s.Load(ctx)

	assert.Equal(t, domain.RoleNone, state.Role)
	src.AssertNotCalled(t, "FetchRole", mock.Anything, mock.Anything)
}

func TestLoad_LiveCredentialFetches(t *testing.T) {
	ctx := context.Background()
	token := signedToken(t, time.Now().Add(time.Hour))
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, token))

	src := new(MockRoleSource)
	src.On("FetchRole", mock.Anything, token).Return(domain.RoleSuperAdmin, nil).Once()

	s := newTestStore(t, kv, src)

	assert.Equal(t, domain.RoleSuperAdmin, s.Load(ctx).Role)
	src.AssertExpectations(t)
}

func TestLoad_StorageReadError(t *testing.T) {
	kv := &faultyStorage{MemoryStore: storage.NewMemoryStore(), failGet: true}
	src := new(MockRoleSource)
	s := newTestStore(t, kv, src)

	state := s.Load(context.Background())

	assert.Equal(t, State{Role: domain.RoleNone, Loading: false}, state)
	src.AssertNotCalled(t, "FetchRole", mock.Anything, mock.Anything)
}

func TestLoad_WithoutSource(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	s := NewStore(Config{}, kv, nil, newEvaluator(t), nil)

	assert.Equal(t, domain.RoleNone, s.Load(ctx).Role)
}

func TestSetRole_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()

	s := newTestStore(t, kv, nil)
	s.SetRole(ctx, domain.RoleAdmin)

	assert.Equal(t, domain.RoleAdmin, s.Role())
	assert.False(t, s.Loading())
	require.NoError(t, s.Flush(ctx))

	restarted := newTestStore(t, kv, nil)
	assert.Equal(t, domain.RoleAdmin, restarted.Load(ctx).Role)
}

func TestSetThenClear_PersistsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()

	s := newTestStore(t, kv, nil)
	s.SetRole(ctx, domain.RoleManager)
	s.ClearRole(ctx)

	assert.Equal(t, domain.RoleNone, s.Role())
	require.NoError(t, s.Flush(ctx))

	_, ok := stored(t, kv)
	assert.False(t, ok)
}

func TestSetRole_WritesLandInCallOrder(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv, nil)

	roles := []domain.Role{domain.RoleEmployee, domain.RoleManager, domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleUser}
	for _, r := range roles {
		s.SetRole(ctx, r)
	}
	require.NoError(t, s.Flush(ctx))

	value, _ := stored(t, kv)
	assert.Equal(t, "USER", value)
}

func TestSetRole_CancelledContextStillPersists(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.SetRole(ctx, domain.RoleManager)

	require.NoError(t, s.Flush(context.Background()))
	value, _ := stored(t, kv)
	assert.Equal(t, "MANAGER", value)
}

func TestSetRole_UnknownRoleClears(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv, nil)

	s.SetRole(ctx, domain.RoleAdmin)
	s.SetRole(ctx, domain.Role("OWNER"))

	assert.Equal(t, domain.RoleNone, s.Role())
	require.NoError(t, s.Flush(ctx))
	_, ok := stored(t, kv)
	assert.False(t, ok)
}

func TestSetRole_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	kv := &faultyStorage{MemoryStore: storage.NewMemoryStore(), failSet: true}
	s := newTestStore(t, kv, nil)

	s.SetRole(ctx, domain.RoleManager)
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, domain.RoleManager, s.Role())
}

func TestSetRole_BeatsInFlightLoad(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := newBlockingSource()
	s := newTestStore(t, kv, src)

	loaded := make(chan State, 1)
	go func() {
		loaded <- s.Load(ctx)
	}()

	<-src.started
	assert.True(t, s.Loading())

	s.SetRole(ctx, domain.RoleManager)
	src.release <- domain.RoleAdmin

	state := <-loaded
	assert.Equal(t, domain.RoleManager, state.Role)
	assert.False(t, state.Loading)

	require.NoError(t, s.Flush(ctx))
	value, _ := stored(t, kv)
	assert.Equal(t, "MANAGER", value)
}

func TestLoad_WaitsForQueuedRemoval(t *testing.T) {
	ctx := context.Background()
	kv := &slowStorage{MemoryStore: storage.NewMemoryStore(), delay: 20 * time.Millisecond}
	s := newTestStore(t, kv, nil)

	s.SetRole(ctx, domain.RoleManager)
	require.NoError(t, s.Flush(ctx))

	s.ClearRole(ctx)
	state := s.Load(ctx)

	assert.Equal(t, State{Role: domain.RoleNone, Loading: false}, state)
	_, ok := stored(t, kv)
	assert.False(t, ok)
}

func TestLoad_WaitsForQueuedSet(t *testing.T) {
	ctx := context.Background()
	kv := &slowStorage{MemoryStore: storage.NewMemoryStore(), delay: 20 * time.Millisecond}
	s := newTestStore(t, kv, nil)

	s.SetRole(ctx, domain.RoleEmployee)
	require.NoError(t, s.Flush(ctx))

	s.SetRole(ctx, domain.RoleAdmin)
	assert.Equal(t, domain.RoleAdmin, s.Load(ctx).Role)

	value, _ := stored(t, kv)
	assert.Equal(t, "ADMIN", value)
}

func TestLoad_ContextDoneWhileWritesQueued(t *testing.T) {
	kv := &slowStorage{MemoryStore: storage.NewMemoryStore(), delay: 200 * time.Millisecond}
	s := newTestStore(t, kv, nil)

	s.SetRole(context.Background(), domain.RoleManager)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Equal(t, State{Role: domain.RoleManager, Loading: false}, s.Load(ctx))

	require.NoError(t, s.Flush(context.Background()))
	value, _ := stored(t, kv)
	assert.Equal(t, "MANAGER", value)
}

func TestRevalidate_AdoptsChangedServerRole(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "MANAGER"))
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := new(MockRoleSource)
	s := newTestStore(t, kv, src)

	assert.Equal(t, domain.RoleManager, s.Load(ctx).Role)
	src.AssertNotCalled(t, "FetchRole", mock.Anything, mock.Anything)

	src.On("FetchRole", mock.Anything, "opaque").Return(domain.RoleAdmin, nil).Once()

	var changes atomic.Int32
	s.OnChange(func(State) { changes.Add(1) })

	state := s.Revalidate(ctx)
	assert.Equal(t, State{Role: domain.RoleAdmin, Loading: false}, state)
	assert.Equal(t, int32(1), changes.Load())

	value, _ := stored(t, kv)
	assert.Equal(t, "ADMIN", value)
	src.AssertExpectations(t)
}

func TestRevalidate_UnchangedRole(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "MANAGER"))
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := new(MockRoleSource)
	src.On("FetchRole", mock.Anything, "opaque").Return(domain.RoleManager, nil).Once()

	s := newTestStore(t, kv, src)
	s.Load(ctx)

	var changes atomic.Int32
	s.OnChange(func(State) { changes.Add(1) })

	assert.Equal(t, domain.RoleManager, s.Revalidate(ctx).Role)
	assert.Zero(t, changes.Load())
	src.AssertExpectations(t)
}

func TestRevalidate_FailuresKeepRole(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch error", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

		src := new(MockRoleSource)
		src.On("FetchRole", mock.Anything, "opaque").Return(domain.RoleNone, errors.New("unavailable"))

		s := newTestStore(t, kv, src)
		s.SetRole(ctx, domain.RoleManager)

		assert.Equal(t, domain.RoleManager, s.Revalidate(ctx).Role)
	})

	t.Run("no credential", func(t *testing.T) {
		src := new(MockRoleSource)
		s := newTestStore(t, storage.NewMemoryStore(), src)
		s.SetRole(ctx, domain.RoleEmployee)

		assert.Equal(t, domain.RoleEmployee, s.Revalidate(ctx).Role)
		src.AssertNotCalled(t, "FetchRole", mock.Anything, mock.Anything)
	})
}

func TestSetRole_BeatsInFlightRevalidate(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := newBlockingSource()
	s := newTestStore(t, kv, src)
	s.SetRole(ctx, domain.RoleManager)

	revalidated := make(chan State, 1)
	go func() {
		revalidated <- s.Revalidate(ctx)
	}()

	<-src.started
	s.SetRole(ctx, domain.RoleEmployee)
	src.release <- domain.RoleAdmin

	assert.Equal(t, domain.RoleEmployee, (<-revalidated).Role)

	require.NoError(t, s.Flush(ctx))
	value, _ := stored(t, kv)
	assert.Equal(t, "EMPLOYEE", value)
}

func TestLoad_FetchTimeout(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	s := NewStore(Config{FetchTimeout: 20 * time.Millisecond}, kv, newBlockingSource(), newEvaluator(t), nil)

	state := s.Load(ctx)
	assert.Equal(t, State{Role: domain.RoleNone, Loading: false}, state)
}

func TestFlush_ContextDone(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(), nil)

	blocked := make(chan struct{})
	s.writeMu.Lock()
	s.lastWrite = blocked
	s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)
	close(blocked)
}

func TestWatch_ReloadsOnInvalidation(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "EMPLOYEE"))

	bus := events.NewLocalEventBus(nil)
	s := NewStore(Config{}, kv, nil, newEvaluator(t), nil)
	s.Load(ctx)
	require.NoError(t, s.Watch(bus))
	assert.Equal(t, 1, bus.Subscribers(events.RoleUpdated))

	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "ADMIN"))
	require.NoError(t, bus.Publish(ctx, events.NewEventBuilder(events.RoleUpdated).Build()))

	assert.Equal(t, domain.RoleAdmin, s.Role())

	// Other topics are ignored.
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "MANAGER"))
	require.NoError(t, bus.Publish(ctx, events.NewEventBuilder(events.UserLoggedIn).Build()))
	assert.Equal(t, domain.RoleAdmin, s.Role())

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 0, bus.Subscribers(events.RoleUpdated))
}

func TestWatch_ClosedBus(t *testing.T) {
	bus := events.NewLocalEventBus(nil)
	require.NoError(t, bus.Close())

	s := newTestStore(t, storage.NewMemoryStore(), nil)
	assert.ErrorIs(t, s.Watch(bus), events.ErrBusClosed)
}

func TestHandleInvalidation_Throttled(t *testing.T) {
	s := NewStore(Config{ReloadRate: 0.001, ReloadBurst: 1}, storage.NewMemoryStore(), nil, newEvaluator(t), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, s.handleInvalidation(ctx, events.Event{ID: "1"}))
	assert.Error(t, s.handleInvalidation(ctx, events.Event{ID: "2"}))
}

func TestOnChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryStore(), nil)

	var calls atomic.Int32
	var last atomic.Value
	cancel := s.OnChange(func(state State) {
		calls.Add(1)
		last.Store(state)
	})

	s.SetRole(ctx, domain.RoleManager)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, domain.RoleManager, last.Load().(State).Role)

	s.Load(ctx)
	assert.Equal(t, int32(3), calls.Load())

	cancel()
	s.ClearRole(ctx)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStore_DelegatesChecks(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(), nil)
	s.SetRole(context.Background(), domain.RoleManager)

	assert.True(t, s.HasPermission("EXPENSE_APPROVE"))
	assert.False(t, s.HasPermission("EXPENSE"))
	assert.True(t, s.CanPerformAction(domain.ActionRead, domain.ResourceTeam))
	assert.False(t, s.CanPerformAction(domain.ActionCreate, domain.ResourceTeam))
	assert.True(t, s.IsAtLeast(domain.RoleEmployee))
	assert.False(t, s.IsAtLeast(domain.RoleAdmin))
}

func TestCredentialExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, credentialExpired("opaque-token", now))
	assert.False(t, credentialExpired(signedToken(t, now.Add(time.Minute)), now))
	assert.True(t, credentialExpired(signedToken(t, now.Add(-time.Minute)), now))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, credentialExpired(noExp, now))
}

func TestLoad_WarnsOnFailures(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)

	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, DefaultRoleKey, "OWNER"))
	require.NoError(t, kv.Set(ctx, DefaultTokenKey, "opaque"))

	src := new(MockRoleSource)
	src.On("FetchRole", mock.Anything, "opaque").Return(domain.RoleNone, errors.New("timeout"))

	s := NewStore(Config{}, kv, src, newEvaluator(t), logger.NewFromZap(zap.New(core)))
	s.Load(ctx)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "Ignoring unrecognised stored role", logs.All()[0].Message)
	assert.Equal(t, "Failed to fetch role from server", logs.All()[1].Message)
}
