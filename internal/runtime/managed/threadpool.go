package managed

import (
	"context"

	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
)

// ThreadPool is the managed view of a step-owned worker pool.
type ThreadPool struct {
	env  *Env
	pool *engine.ThreadPool
}

func NewThreadPool(env *Env, pool *engine.ThreadPool) *ThreadPool {
	return &ThreadPool{env: env, pool: pool}
}

var threadPoolDescriptor = &descriptor[*ThreadPool]{
	kind: naming.KindThreadPool,
	attrs: map[string]attribute[*ThreadPool]{
		"Id":             {get: func(t *ThreadPool) any { return t.pool.ID() }},
		"Source":         {get: func(t *ThreadPool) any { return t.pool.Source() }},
		"RouteId":        {get: func(t *ThreadPool) any { return t.pool.RouteID() }},
		"CamelId":        {get: func(t *ThreadPool) any { return t.env.Identity.ManagementName }},
		"PoolSize":       {get: func(t *ThreadPool) any { return t.pool.PoolSize() }},
		"RunningWorkers": {get: func(t *ThreadPool) any { return t.pool.RunningWorkers() }},
		"PendingTasks":   {get: func(t *ThreadPool) any { return t.pool.PendingTasks() }},
		"CompletedTasks": {get: func(t *ThreadPool) any { return t.pool.CompletedTasks() }},
		"Shutdown":       {get: func(t *ThreadPool) any { return t.pool.IsShutdown() }},
	},
	ops: map[string]operation[*ThreadPool]{},
}

func (t *ThreadPool) Kind() naming.Kind          { return naming.KindThreadPool }
func (t *ThreadPool) AttributeNames() []string   { return threadPoolDescriptor.attributeNames(t) }
func (t *ThreadPool) Operations() []string       { return threadPoolDescriptor.operationNames() }
func (t *ThreadPool) Target() *engine.ThreadPool { return t.pool }

func (t *ThreadPool) Attribute(name string) (any, error) {
	return threadPoolDescriptor.attribute(t, name)
}

func (t *ThreadPool) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	return threadPoolDescriptor.invoke(ctx, t, op, args)
}
