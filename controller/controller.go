// Package controller implements the per-kind reconcile loop: the base
// flow every kind (Tool, Agent, Workflow, Network, LLM, CustomResourceDefinition,
// and CRD-registered kinds) runs to converge a resource's observed state
// with its desired state, plus the retry and locking machinery shared by
// every concrete controller.
package controller

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/retry"
	"github.com/mastra-run/mastra-go/store"
	"github.com/mastra-run/mastra-go/telemetry"
)

// Kind is implemented by each concrete per-kind controller (toolctl,
// agentctl, workflowctl, networkctl, llmctl, crdctl). The base Controller
// drives these methods through the reconcile flow; a Kind implementation
// never mutates r.Status directly, since the base flow owns phase and
// condition transitions.
type Kind interface {
	// ValidateSpec checks r.Spec for kind-specific correctness.
	ValidateSpec(r *resource.Resource) error
	// ResolveDependencies checks that everything r.Spec references by name
	// (agents, tools, LLMs) currently exists.
	ResolveDependencies(ctx context.Context, r *resource.Resource) error
	// DesiredState computes the state r.Spec implies.
	DesiredState(ctx context.Context, r *resource.Resource) (any, error)
	// CurrentState observes the resource's live state.
	CurrentState(ctx context.Context, r *resource.Resource) (any, error)
	// UpdateState converges current toward desired.
	UpdateState(ctx context.Context, r *resource.Resource, desired, current any) error
	// Cleanup releases anything UpdateState allocated, called once when r is
	// being deleted.
	Cleanup(ctx context.Context, r *resource.Resource) error
}

// StatesEqual is implemented by a Kind that needs more than reflect.DeepEqual
// to decide whether desired and current already match.
type StatesEqual interface {
	StatesEqual(desired, current any) bool
}

// Controller drives the reconcile flow for every resource of one Kind's
// resource.Kind, tracking a per-resource-key lock to keep reconciles of the
// same resource from running concurrently, and a periodic loop per watched
// resource.
type Controller struct {
	resourceKind resource.Kind
	impl         Kind
	store        store.Store
	bus          *events.Bus
	logger       telemetry.Logger
	metrics      telemetry.Metrics
	retryCfg     retry.Config
	interval     time.Duration

	mu        sync.Mutex
	inFlight  map[string]bool
	attempts  map[string]int
	stopped   map[string]bool
	loopStop  map[string]context.CancelFunc
	loopsDone sync.WaitGroup
}

// Config controls a Controller's retry budget and periodic reconcile
// interval.
type Config struct {
	RetryConfig retry.Config
	// Interval is how often a watched resource is re-reconciled absent a
	// bus event. Zero defaults to 60s.
	Interval time.Duration
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
}

// New constructs a Controller for resourceKind, backed by impl, store, and
// bus. Call Watch to start reacting to bus events and periodic reconciles
// for a given resource.
func New(resourceKind resource.Kind, impl Kind, st store.Store, bus *events.Bus, cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.RetryConfig == (retry.Config{}) {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Controller{
		resourceKind: resourceKind,
		impl:         impl,
		store:        st,
		bus:          bus,
		logger:       logger,
		metrics:      metrics,
		retryCfg:     cfg.RetryConfig,
		interval:     cfg.Interval,
		inFlight:     make(map[string]bool),
		attempts:     make(map[string]int),
		stopped:      make(map[string]bool),
		loopStop:     make(map[string]context.CancelFunc),
	}
}

// Start subscribes the controller to "<kind>.created|updated|deleted" bus
// events, reconciling the affected resource on each.
func (c *Controller) Start() events.Unsubscribe {
	unsubs := make([]events.Unsubscribe, 0, 3)
	for _, suffix := range []string{events.SuffixCreated, events.SuffixUpdated, events.SuffixDeleted} {
		suffix := suffix
		topic := events.KindTopic(string(c.resourceKind), suffix)
		unsubs = append(unsubs, c.bus.Subscribe(topic, func(ctx context.Context, evt events.Event) {
			r, ok := evt.Payload.(*resource.Resource)
			if !ok {
				return
			}
			if err := c.Reconcile(ctx, r); err != nil {
				c.logger.Warn(ctx, "controller: reconcile from event failed", "key", r.Key(), "error", err)
			}
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Watch starts a periodic reconcile loop for r's key, running every
// Config.Interval until ctx is cancelled or Unwatch is called. The loop
// stops early, without being restarted, once a critical error is observed
// for this key.
func (c *Controller) Watch(ctx context.Context, r *resource.Resource) {
	key := r.Key()

	c.mu.Lock()
	if cancel, ok := c.loopStop[key]; ok {
		cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.loopStop[key] = cancel
	delete(c.stopped, key)
	c.mu.Unlock()

	c.loopsDone.Add(1)
	go c.watchLoop(loopCtx, r)
}

// Unwatch stops the periodic reconcile loop for r's key, if one is running.
func (c *Controller) Unwatch(r *resource.Resource) {
	key := r.Key()
	c.mu.Lock()
	if cancel, ok := c.loopStop[key]; ok {
		cancel()
		delete(c.loopStop, key)
	}
	c.mu.Unlock()
}

// Close stops every running periodic loop and waits for them to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	for key, cancel := range c.loopStop {
		cancel()
		delete(c.loopStop, key)
	}
	c.mu.Unlock()
	c.loopsDone.Wait()
}

func (c *Controller) watchLoop(ctx context.Context, r *resource.Resource) {
	defer c.loopsDone.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			key := r.Key()
			c.mu.Lock()
			stopped := c.stopped[key]
			c.mu.Unlock()
			if stopped {
				return
			}
			current, err := c.store.Get(ctx, r.Kind, r.Metadata.Namespace, r.Metadata.Name)
			if err != nil || current == nil {
				continue
			}
			if err := c.Reconcile(ctx, current); err != nil {
				c.logger.Warn(ctx, "controller: periodic reconcile failed", "key", key, "error", err)
			}
		}
	}
}

// Reconcile runs the base reconcile flow against r: it acquires the
// per-resource lock (skipping this attempt if one is already in progress,
// since the in-progress reconcile will observe any change this one would
// have made), ensures status exists, handles deletion, validates the spec,
// resolves dependencies, diffs desired against current state, and advances
// the phase.
func (c *Controller) Reconcile(ctx context.Context, r *resource.Resource) error {
	key := r.Key()

	c.mu.Lock()
	if c.inFlight[key] {
		c.mu.Unlock()
		return nil
	}
	c.inFlight[key] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	now := time.Now()
	if r.Status == nil {
		r.Status = resource.NewStatus()
	}
	r.Status.SetCondition(now, resource.Condition{Type: resource.ConditionReconciling, Status: resource.ConditionTrue})

	if r.Metadata.DeletionTimestamp != nil {
		return c.reconcileDeletion(ctx, r, now)
	}

	if err := c.impl.ValidateSpec(r); err != nil {
		return c.fail(ctx, r, now, &ValidationFailedError{Kind: string(r.Kind), Name: r.Metadata.Name, Err: err})
	}

	if err := c.impl.ResolveDependencies(ctx, r); err != nil {
		return c.fail(ctx, r, now, &DependencyResolutionFailedError{Kind: string(r.Kind), Name: r.Metadata.Name, Err: err})
	}

	desired, err := c.impl.DesiredState(ctx, r)
	if err != nil {
		return c.fail(ctx, r, now, &ReconciliationFailedError{Kind: string(r.Kind), Name: r.Metadata.Name, Err: err})
	}
	current, err := c.impl.CurrentState(ctx, r)
	if err != nil {
		return c.fail(ctx, r, now, &StateRetrievalFailedError{Kind: string(r.Kind), Name: r.Metadata.Name, Err: err, retryable: true})
	}

	if !c.statesEqual(desired, current) {
		if err := c.impl.UpdateState(ctx, r, desired, current); err != nil {
			return c.handleUpdateError(ctx, r, now, err)
		}
	}

	c.mu.Lock()
	delete(c.attempts, key)
	c.mu.Unlock()

	r.Status.SetCondition(now, resource.Condition{Type: resource.ConditionReconciling, Status: resource.ConditionFalse})
	if r.Status.Phase == resource.PhasePending {
		if _, err := resource.Transition(r.Status, resource.PhaseInitializing, now); err != nil {
			return err
		}
	}
	if r.Status.Phase == resource.PhaseInitializing {
		if _, err := resource.Transition(r.Status, resource.PhaseRunning, now); err != nil {
			return err
		}
	}
	r.Status.ObservedGeneration = r.Metadata.Generation
	if err := c.store.Save(ctx, r); err != nil {
		return &UpdateFailedError{Kind: string(r.Kind), Name: r.Metadata.Name, Err: err, retryable: true}
	}
	c.emit(ctx, events.KindTopic(string(r.Kind), events.SuffixReconciled), r)
	return nil
}

func (c *Controller) statesEqual(desired, current any) bool {
	if eq, ok := c.impl.(StatesEqual); ok {
		return eq.StatesEqual(desired, current)
	}
	return reflect.DeepEqual(desired, current)
}

func (c *Controller) reconcileDeletion(ctx context.Context, r *resource.Resource, now time.Time) error {
	key := r.Key()
	if _, err := resource.Transition(r.Status, resource.PhaseTerminating, now); err != nil {
		c.logger.Warn(ctx, "controller: invalid transition to Terminating", "key", key, "error", err)
	}
	if err := c.impl.Cleanup(ctx, r); err != nil {
		c.logger.Error(ctx, "controller: cleanup failed", "key", key, "error", err)
	}
	c.Unwatch(r)
	c.mu.Lock()
	c.stopped[key] = true
	delete(c.attempts, key)
	c.mu.Unlock()

	if _, err := c.store.Delete(ctx, r.Kind, r.Metadata.Namespace, r.Metadata.Name); err != nil {
		c.logger.Error(ctx, "controller: delete from store failed", "key", key, "error", err)
	}
	c.emit(ctx, events.KindTopic(string(r.Kind), events.SuffixDeleted), r)
	return nil
}

// handleUpdateError classifies an UpdateState failure, decides whether to
// retry, and updates phase accordingly: Failed for permanent errors or an
// exhausted retry budget, Degraded while a retry is still scheduled.
func (c *Controller) handleUpdateError(ctx context.Context, r *resource.Resource, now time.Time, err error) error {
	key := r.Key()

	c.mu.Lock()
	c.attempts[key]++
	attempt := c.attempts[key]
	c.mu.Unlock()

	updateErr := &UpdateFailedError{Kind: string(r.Kind), Name: r.Metadata.Name, Err: err, retryable: retry.ShouldRetry(attempt, c.retryCfg, err)}

	if retry.ShouldRetry(attempt, c.retryCfg, err) {
		if _, terr := resource.Transition(r.Status, resource.PhaseDegraded, now); terr != nil {
			c.logger.Warn(ctx, "controller: invalid transition to Degraded", "key", key, "error", terr)
		}
		r.Status.SetCondition(now, resource.Condition{Type: resource.ConditionReconciling, Status: resource.ConditionFalse})
		_ = c.store.Save(ctx, r)
		c.emit(ctx, events.KindTopic(string(r.Kind), events.SuffixReconcileFailed), updateErr)
		return updateErr
	}

	c.mu.Lock()
	delete(c.attempts, key)
	c.mu.Unlock()
	if attempt > c.retryCfg.MaxRetries {
		return c.fail(ctx, r, now, &ExhaustedUpdateError{Attempts: attempt, Err: updateErr})
	}
	return c.fail(ctx, r, now, updateErr)
}

// ExhaustedUpdateError reports that UpdateState kept failing past the
// controller's retry budget.
type ExhaustedUpdateError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedUpdateError) Error() string { return e.Err.Error() }
func (e *ExhaustedUpdateError) Unwrap() error { return e.Err }

// fail transitions r to Failed, stamps the condition and phase, optionally
// stops the periodic loop for critical errors, persists the resource, and
// emits <kind>.reconcile.failed.
func (c *Controller) fail(ctx context.Context, r *resource.Resource, now time.Time, err error) error {
	if _, terr := resource.Transition(r.Status, resource.PhaseFailed, now); terr != nil {
		c.logger.Warn(ctx, "controller: invalid transition to Failed", "key", r.Key(), "error", terr)
	}
	r.Status.SetCondition(now, resource.Condition{Type: resource.ConditionReconciling, Status: resource.ConditionFalse, Reason: errorReason(err), Message: err.Error()})

	if IsCritical(err) {
		c.mu.Lock()
		c.stopped[r.Key()] = true
		c.mu.Unlock()
		c.Unwatch(r)
	}

	if serr := c.store.Save(ctx, r); serr != nil {
		c.logger.Error(ctx, "controller: save after failure failed", "key", r.Key(), "error", serr)
	}
	c.emit(ctx, events.KindTopic(string(r.Kind), events.SuffixReconcileFailed), err)
	return err
}

func errorReason(err error) string {
	var ve *ValidationFailedError
	var de *DependencyResolutionFailedError
	var se *StateRetrievalFailedError
	var ue *ExhaustedUpdateError
	var fe *UpdateFailedError
	switch {
	case errors.As(err, &ve):
		return "ValidationFailed"
	case errors.As(err, &de):
		return "DependencyResolutionFailed"
	case errors.As(err, &se):
		return "StateRetrievalFailed"
	case errors.As(err, &ue), errors.As(err, &fe):
		return "UpdateFailed"
	default:
		return "ReconciliationFailed"
	}
}

func (c *Controller) emit(ctx context.Context, topic string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, topic, payload)
}
