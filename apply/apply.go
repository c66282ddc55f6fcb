// Package apply executes a plan against a provider.
//
// The walk starts from the leaves of the dependency graph and recurses into
// dependencies, so every instance is processed after all of its parents.
// Independent subtrees run concurrently, bounded by a semaphore. Transient
// provider failures are retried with backoff; a permanent failure aborts the
// walk while already started operations run to completion.
package apply

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/converge/converge/apply/internal/task"
	"github.com/converge/converge/decoder"
	"github.com/converge/converge/graph"
	"github.com/converge/converge/plan"
	"github.com/converge/converge/provider"
	"github.com/converge/converge/resource"
	"github.com/converge/converge/state"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultParallelism is the default maximum number of concurrent provider
// operations.
//
// In practice, execution is likely bound by provider i/o.
var DefaultParallelism = 10

// StateStore persists resource records.
type StateStore interface {
	PutResource(ctx context.Context, project string, rec *state.Record) error
	DeleteResource(ctx context.Context, project, addr string) error
}

// An Executor applies planned changes.
type Executor struct {
	Provider provider.Interface
	State    StateStore

	// Parallelism bounds concurrent provider operations. If not set,
	// DefaultParallelism is used.
	Parallelism uint

	// Logger logs execution updates. If not set, logs are discarded.
	Logger *zap.Logger

	// Backoff algorithm used for retries. If not set, exponential backoff
	// is used.
	Backoff func() backoff.BackOff
}

// A Result summarizes a completed apply.
type Result struct {
	Created   int
	Updated   int
	Replaced  int
	Destroyed int

	// Applied holds the full attribute set of every live instance after
	// the run, keyed by address. Output expressions are evaluated against
	// these values.
	Applied map[string]cty.Value
}

// Apply executes the plan.
//
// Cancelling the context stops new operations from starting; operations
// already in flight run to completion and their results are recorded, so
// state stays consistent with what the provider actually did.
func (e *Executor) Apply(ctx context.Context, project string, g *graph.Graph, p *plan.Plan) (*Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	algo := e.Backoff
	if algo == nil {
		algo = func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		}
	}
	c := e.Parallelism
	if c == 0 {
		c = uint(DefaultParallelism)
	}

	logger.Info("Apply", zap.String("project", project))

	r := &run{
		Project:  project,
		Graph:    g,
		Changes:  make(map[string]*plan.Change, len(p.Changes)),
		Provider: e.Provider,
		State:    e.State,
		Logger:   logger,
		Backoff:  algo,
		Sem:      semaphore.NewWeighted(int64(c)),
		applied:  make(map[string]cty.Value),
		tasks:    task.NewGroup(),
	}
	for _, ch := range p.Changes {
		r.Changes[ch.Addr.String()] = ch
	}

	if err := r.destroyOrphans(ctx, p.Destroys); err != nil {
		return r.result(), errors.Wrap(err, "destroy removed resources")
	}

	if err := r.createUpdate(ctx); err != nil {
		return r.result(), err
	}

	res := r.result()
	logger.Info(
		"Done",
		zap.Int("create", res.Created),
		zap.Int("update", res.Updated),
		zap.Int("replace", res.Replaced),
		zap.Int("destroy", res.Destroyed),
	)
	return res, nil
}

type run struct {
	Project string
	Graph   *graph.Graph
	Changes map[string]*plan.Change

	Provider provider.Interface
	State    StateStore
	Logger   *zap.Logger
	Backoff  func() backoff.BackOff
	Sem      *semaphore.Weighted

	mu      sync.Mutex
	applied map[string]cty.Value

	tasks *task.Group

	created, updated, replaced, destroyed uint32
}

func (r *run) result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	applied := make(map[string]cty.Value, len(r.applied))
	for k, v := range r.applied {
		applied[k] = v
	}
	return &Result{
		Created:   int(atomic.LoadUint32(&r.created)),
		Updated:   int(atomic.LoadUint32(&r.updated)),
		Replaced:  int(atomic.LoadUint32(&r.replaced)),
		Destroyed: int(atomic.LoadUint32(&r.destroyed)),
		Applied:   applied,
	}
}

func (r *run) createUpdate(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, n := range r.Graph.Leaves() {
		n := n
		g.Go(func() error {
			return r.processNode(ctx, n)
		})
	}
	return g.Wait()
}

func (r *run) processNode(ctx context.Context, n *graph.Node) error {
	addr := n.Resource.Addr.String()
	logger := r.Logger.With(zap.String("resource", addr))

	return r.tasks.Do(addr, func() error {
		// Wait for dependencies before acquiring the semaphore, otherwise
		// low parallelism limits can deadlock the walk.
		if err := r.processDependencies(ctx, n, logger); err != nil {
			return err
		}

		if err := r.Sem.Acquire(ctx, 1); err != nil {
			return errors.Wrap(err, "acquire semaphore")
		}
		defer r.Sem.Release(1)

		change := r.Changes[addr]
		if change == nil {
			return errors.Errorf("no planned change for %s", addr)
		}

		if change.Action == plan.NoOp {
			r.setApplied(addr, change.Record.Attrs)
			logger.Debug("No changes required")
			return nil
		}

		input, err := r.resolveInput(n)
		if err != nil {
			return err
		}

		out, err := r.execute(ctx, n, change, input, logger)
		if err != nil {
			return err
		}

		n.Resource.Output = out
		r.setApplied(addr, out)
		return nil
	})
}

func (r *run) processDependencies(ctx context.Context, n *graph.Node, logger *zap.Logger) error {
	parents := r.Graph.Dependencies(n)
	if len(parents) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, parent := range parents {
		parent := parent
		logger.Debug("Waiting on dependency", zap.String("parent", parent.Resource.Addr.String()))
		g.Go(func() error {
			return r.processNode(ctx, parent)
		})
	}
	return g.Wait()
}

// resolveInput produces the wholly known input for a node from the applied
// values of its parents.
func (r *run) resolveInput(n *graph.Node) (cty.Value, error) {
	r.mu.Lock()
	vars := r.Graph.Variables(r.applied)
	r.mu.Unlock()

	input, err := n.ResolveInput(vars)
	if err != nil {
		return cty.NilVal, err
	}
	if !input.IsWhollyKnown() {
		return cty.NilVal, errors.Errorf("input for %s not fully resolved", n.Resource.Addr)
	}
	return input, nil
}

// execute performs the provider operations for a single change and persists
// the outcome.
func (r *run) execute(ctx context.Context, n *graph.Node, change *plan.Change, input cty.Value, logger *zap.Logger) (cty.Value, error) {
	addr := n.Resource.Addr
	typename := addr.Type

	if change.Action == plan.Replace {
		logger.Info("Replacing resource")
		err := r.retry(ctx, logger, func(opCtx context.Context) error {
			return r.Provider.Delete(opCtx, typename, change.Record.ID)
		})
		if err != nil {
			return cty.NilVal, errors.Wrapf(err, "delete %s", addr)
		}
		if err := r.deleteRecord(addr.String()); err != nil {
			return cty.NilVal, err
		}
	}

	var id string
	var out cty.Value
	var opErr error
	switch change.Action {
	case plan.Create, plan.Replace:
		if change.Action == plan.Create {
			logger.Info("Creating resource")
		}
		opErr = r.retry(ctx, logger, func(opCtx context.Context) error {
			var err error
			id, out, err = r.Provider.Create(opCtx, typename, input)
			return err
		})
	case plan.Update:
		logger.Info("Updating resource")
		id = change.Record.ID
		opErr = r.retry(ctx, logger, func(opCtx context.Context) error {
			var err error
			out, err = r.Provider.Update(opCtx, typename, id, change.Record.Attrs, input)
			return err
		})
	default:
		return cty.NilVal, errors.Errorf("unexpected action %s for %s", change.Action, addr)
	}
	if opErr != nil {
		return cty.NilVal, errors.Wrapf(opErr, "%s %s", change.Action, addr)
	}

	deps := make([]string, len(n.Resource.Deps))
	for i, d := range n.Resource.Deps {
		deps[i] = d.String()
	}
	rec := &state.Record{
		Addr:  addr,
		ID:    id,
		Attrs: out,
		Deps:  deps,
	}
	if err := r.putRecord(rec); err != nil {
		return cty.NilVal, err
	}

	switch change.Action {
	case plan.Create:
		atomic.AddUint32(&r.created, 1)
		n.Resource.State = resource.StateCreated
	case plan.Update:
		atomic.AddUint32(&r.updated, 1)
		n.Resource.State = resource.StateUpdated
	case plan.Replace:
		atomic.AddUint32(&r.replaced, 1)
		n.Resource.State = resource.StateCreated
	}
	return out, nil
}

// destroyOrphans deletes recorded resources no longer in the configuration.
// The waits make sure a resource is not deleted before everything that
// depended on it is gone, while unrelated resources delete concurrently.
func (r *run) destroyOrphans(ctx context.Context, destroys []*plan.Change) error {
	if len(destroys) == 0 {
		return nil
	}
	r.Logger.Debug("Destroy removed resources", zap.Int("count", len(destroys)))

	wgs := make(map[string]*sync.WaitGroup, len(destroys))
	for _, ch := range destroys {
		for _, dep := range ch.Record.Deps {
			wg, ok := wgs[dep]
			if !ok {
				wg = &sync.WaitGroup{}
				wgs[dep] = wg
			}
			wg.Add(1)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range destroys {
		ch := ch
		g.Go(func() error {
			if wg, ok := wgs[ch.Addr.String()]; ok {
				// Wait for all dependents.
				wg.Wait()
			}
			err := r.destroyResource(ctx, ch)
			for _, dep := range ch.Record.Deps {
				if wg, ok := wgs[dep]; ok {
					wg.Done()
				}
			}
			return err
		})
	}
	return g.Wait()
}

func (r *run) destroyResource(ctx context.Context, ch *plan.Change) error {
	addr := ch.Addr.String()
	logger := r.Logger.With(zap.String("resource", addr))

	if err := r.Sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "acquire semaphore")
	}
	defer r.Sem.Release(1)

	logger.Info("Destroying resource")
	err := r.retry(ctx, logger, func(opCtx context.Context) error {
		return r.Provider.Delete(opCtx, ch.Addr.Type, ch.Record.ID)
	})
	if err != nil {
		return errors.Wrapf(err, "delete %s", addr)
	}
	if err := r.deleteRecord(addr); err != nil {
		return err
	}
	atomic.AddUint32(&r.destroyed, 1)
	return nil
}

// retry runs op, retrying transient failures per the backoff algorithm.
// Permanent provider failures and context cancellation stop the retries.
// The operation itself runs on a detached context so an attempt already in
// flight finishes even when the walk is cancelled.
func (r *run) retry(ctx context.Context, logger *zap.Logger, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	attempt := func() error {
		opCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		err := op(opCtx)
		if provider.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, dur time.Duration) {
		logger.Info("Retrying", zap.Error(err), zap.Duration("duration", dur))
	}
	return backoff.RetryNotify(attempt, backoff.WithContext(r.Backoff(), ctx), notify)
}

func (r *run) setApplied(addr string, val cty.Value) {
	r.mu.Lock()
	r.applied[addr] = val
	r.mu.Unlock()
}

// putRecord stores a record on a fresh context so a cancelled walk still
// records completed work.
func (r *run) putRecord(rec *state.Record) error {
	pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(r.State.PutResource(pctx, r.Project, rec), "store resource")
}

func (r *run) deleteRecord(addr string) error {
	pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(r.State.DeleteResource(pctx, r.Project, addr), "delete resource record")
}

// ResolveOutputs evaluates output expressions against applied values.
func ResolveOutputs(g *graph.Graph, outputs []*decoder.Output, applied map[string]cty.Value) (map[string]cty.Value, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	ectx := &resource.EvalContext{Variables: g.Variables(applied)}
	out := make(map[string]cty.Value, len(outputs))
	for _, o := range outputs {
		val, err := o.Value.Value(ectx)
		if err != nil {
			return nil, errors.Wrapf(err, "output %q", o.Name)
		}
		if !val.IsWhollyKnown() {
			return nil, errors.Errorf("output %q refers to values that were not applied", o.Name)
		}
		out[o.Name] = val
	}
	return out, nil
}
