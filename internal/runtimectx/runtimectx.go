// Package runtimectx bundles the collaborators one running instance needs:
// id allocator, dependency graph, data registry, application table, logger
// and metrics. Design note §9 rules out package-level singletons for all of
// these, since a process (and every test in this module) may run more than
// one runtime at a time.
package runtimectx

import (
	"time"

	"github.com/rs/zerolog"

	"taskrt/internal/datainfo"
	"taskrt/internal/graph"
	"taskrt/internal/rtlog"
	"taskrt/internal/rtmetrics"
	"taskrt/internal/taskmodel"
)

// Config holds the tunables a deployment sets once at construction. There
// is no file/env loader here (§ Ambient Stack, Configuration): callers
// build a Config literal or parse one themselves upstream.
type Config struct {
	// QueueCapacity bounds the AccessProcessor's request channel.
	QueueCapacity int
	// DispatchWorkers sizes the reference TaskDispatcher's worker pool.
	DispatchWorkers int
	// DispatchQueueCapacity bounds the reference dispatcher's internal job
	// channel.
	DispatchQueueCapacity int
	// BarrierTimeout is the default deadline applied to barrier/end_of_app
	// waits when the caller's context carries none.
	BarrierTimeout time.Duration
}

// DefaultConfig returns conservative values suitable for tests and small
// embedders.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:         256,
		DispatchWorkers:       4,
		DispatchQueueCapacity: 64,
		BarrierTimeout:        30 * time.Second,
	}
}

// Context bundles everything the analyzer's single-writer goroutine owns.
// Nothing outside internal/analyzer (and tests) should reach into these
// fields directly; the AccessProcessor is the intended front door.
type Context struct {
	Config Config

	IDs   *taskmodel.IDAllocator
	Graph *graph.Graph
	Data  *datainfo.Provider
	Apps  map[string]*taskmodel.Application

	Metrics *rtmetrics.Registry
	Log     zerolog.Logger
}

// New constructs a fresh Context. component names the zerolog scope
// ("ta" for the analyzer, conventionally).
func New(cfg Config, component string) *Context {
	return &Context{
		Config:  cfg,
		IDs:     taskmodel.NewIDAllocator(),
		Graph:   graph.New(),
		Data:    datainfo.New(),
		Apps:    make(map[string]*taskmodel.Application),
		Metrics: rtmetrics.NewRegistry(),
		Log:     rtlog.New(component, nil),
	}
}

// App looks up or lazily creates the Application record for appID. Only
// the analyzer goroutine may call this.
func (c *Context) App(appID string) *taskmodel.Application {
	app, ok := c.Apps[appID]
	if !ok {
		app = taskmodel.NewApplication(appID)
		c.Apps[appID] = app
	}
	return app
}
