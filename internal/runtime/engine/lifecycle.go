package engine

// LifecycleStrategy is notified about everything a context adds or removes.
// Callbacks run synchronously on the goroutine changing the context.
type LifecycleStrategy interface {
	// OnContextStarting may veto startup by returning an error.
	OnContextStarting(c *Context) error
	OnContextStarted(c *Context)
	OnContextStartFailed(c *Context, err error)
	OnContextStopped(c *Context)

	OnEndpointAdd(ep Endpoint)
	// OnServiceAdd reports a service. route is nil for context services.
	OnServiceAdd(svc Service, route *Route)
	OnServiceRemove(svc Service, route *Route)

	OnRoutesAdd(routes []*Route)
	OnRoutesRemove(routes []*Route)

	OnThreadPoolAdd(pool *ThreadPool)
	OnThreadPoolRemove(pool *ThreadPool)
}

// BaseLifecycle implements LifecycleStrategy with no-ops. Embed it to
// override only some callbacks.
type BaseLifecycle struct{}

func (BaseLifecycle) OnContextStarting(*Context) error     { return nil }
func (BaseLifecycle) OnContextStarted(*Context)            {}
func (BaseLifecycle) OnContextStartFailed(*Context, error) {}
func (BaseLifecycle) OnContextStopped(*Context)            {}
func (BaseLifecycle) OnEndpointAdd(Endpoint)               {}
func (BaseLifecycle) OnServiceAdd(Service, *Route)         {}
func (BaseLifecycle) OnServiceRemove(Service, *Route)      {}
func (BaseLifecycle) OnRoutesAdd([]*Route)                 {}
func (BaseLifecycle) OnRoutesRemove([]*Route)              {}
func (BaseLifecycle) OnThreadPoolAdd(*ThreadPool)          {}
func (BaseLifecycle) OnThreadPoolRemove(*ThreadPool)       {}
