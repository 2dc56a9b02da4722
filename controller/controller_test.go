package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store/memstore"
)

type stubKind struct {
	mu sync.Mutex

	validateErr    error
	resolveErr     error
	desired        any
	desiredErr     error
	current        any
	currentErr     error
	updateErr      error
	updateCalls    int32
	cleanupCalls   int32
	concurrentSeen int32
	inUpdate       int32
}

func (s *stubKind) ValidateSpec(r *resource.Resource) error { return s.validateErr }

func (s *stubKind) ResolveDependencies(ctx context.Context, r *resource.Resource) error {
	return s.resolveErr
}

func (s *stubKind) DesiredState(ctx context.Context, r *resource.Resource) (any, error) {
	return s.desired, s.desiredErr
}

func (s *stubKind) CurrentState(ctx context.Context, r *resource.Resource) (any, error) {
	return s.current, s.currentErr
}

func (s *stubKind) UpdateState(ctx context.Context, r *resource.Resource, desired, current any) error {
	n := atomic.AddInt32(&s.inUpdate, 1)
	if n > atomic.LoadInt32(&s.concurrentSeen) {
		atomic.StoreInt32(&s.concurrentSeen, n)
	}
	time.Sleep(10 * time.Millisecond)
	atomic.AddInt32(&s.updateCalls, 1)
	atomic.AddInt32(&s.inUpdate, -1)
	return s.updateErr
}

func (s *stubKind) Cleanup(ctx context.Context, r *resource.Resource) error {
	atomic.AddInt32(&s.cleanupCalls, 1)
	return nil
}

func newTestResource(name string) *resource.Resource {
	return &resource.Resource{
		Kind:     "Tool",
		Metadata: resource.Metadata{Name: name, Namespace: "default"},
	}
}

func TestReconcileConvergesAndPromotesToRunning(t *testing.T) {
	st := memstore.New()
	bus := events.New(nil)
	impl := &stubKind{desired: "a", current: "b"}
	c := New("Tool", impl, st, bus, Config{})

	r := newTestResource("t1")
	err := c.Reconcile(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, resource.PhaseRunning, r.Status.Phase)
	assert.True(t, r.Status.IsConditionTrue(resource.ConditionReady))
	assert.False(t, r.Status.IsConditionTrue(resource.ConditionReconciling))
	assert.Equal(t, int32(1), impl.updateCalls)
}

func TestReconcileSkipsUpdateWhenStatesEqual(t *testing.T) {
	st := memstore.New()
	bus := events.New(nil)
	impl := &stubKind{desired: "same", current: "same"}
	c := New("Tool", impl, st, bus, Config{})

	r := newTestResource("t1")
	require.NoError(t, c.Reconcile(context.Background(), r))
	assert.Equal(t, int32(0), impl.updateCalls)
	assert.Equal(t, resource.PhaseRunning, r.Status.Phase)
}

func TestReconcileValidationFailureSetsFailed(t *testing.T) {
	st := memstore.New()
	bus := events.New(nil)
	impl := &stubKind{validateErr: errors.New("bad spec")}
	c := New("Tool", impl, st, bus, Config{})

	r := newTestResource("t1")
	err := c.Reconcile(context.Background(), r)
	var verr *ValidationFailedError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, resource.PhaseFailed, r.Status.Phase)
}

func TestReconcileDependencyResolutionFailureSetsFailed(t *testing.T) {
	st := memstore.New()
	bus := events.New(nil)
	impl := &stubKind{resolveErr: errors.New("missing agent")}
	c := New("Tool", impl, st, bus, Config{})

	r := newTestResource("t1")
	err := c.Reconcile(context.Background(), r)
	var derr *DependencyResolutionFailedError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, resource.PhaseFailed, r.Status.Phase)
}

func TestReconcileDeletionRunsCleanupAndStopsLoop(t *testing.T) {
	st := memstore.New()
	bus := events.New(nil)
	impl := &stubKind{}
	c := New("Tool", impl, st, bus, Config{})

	r := newTestResource("t1")
	require.NoError(t, st.Save(context.Background(), r))
	now := time.Now()
	r.Metadata.DeletionTimestamp = &now

	require.NoError(t, c.Reconcile(context.Background(), r))
	assert.Equal(t, resource.PhaseTerminating, r.Status.Phase)
	assert.Equal(t, int32(1), impl.cleanupCalls)

	got, err := st.Get(context.Background(), "Tool", "default", "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReconcileConcurrentAttemptsOnSameKeySkip(t *testing.T) {
	st := memstore.New()
	bus := events.New(nil)
	impl := &stubKind{desired: "a", current: "b"}
	c := New("Tool", impl, st, bus, Config{})

	r := newTestResource("t1")
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Reconcile(context.Background(), r)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int32(1), impl.concurrentSeen)
	assert.Equal(t, int32(1), impl.concurrentSeen, "concurrent reconciles on the same key must not overlap UpdateState")
}

func TestIsCriticalMatchesMessagePattern(t *testing.T) {
	assert.True(t, IsCritical(errors.New("FATAL: disk full")))
	assert.False(t, IsCritical(errors.New("transient timeout")))
	assert.False(t, IsCritical(nil))
}

type criticalError struct{}

func (criticalError) Error() string  { return "boom" }
func (criticalError) Critical() bool { return true }

func TestIsCriticalHonorsInterface(t *testing.T) {
	assert.True(t, IsCritical(criticalError{}))
}
