package taskmodel

// Application tracks one submitter's live tasks and its end-of-app flag.
//
// An Application is implicit on first submission and is owned exclusively by
// the analyzer goroutine, like everything else reachable from
// RuntimeContext — no locks are needed here (§5).
type Application struct {
	ID string

	// Live is the set of task ids submitted by this application that have
	// not yet reached a terminal state.
	Live map[int64]struct{}

	// NoMoreTasks is set once an END_OF_APP request has been received.
	NoMoreTasks bool

	// Closed is set once the application has been fully destroyed: all
	// tasks terminal, end-of-app received, and all barriers released.
	Closed bool

	// Failed is set once any task belonging to this application reaches
	// FAILED, including by cascade. It never clears; it is the aggregate
	// barrier/end_of_app report for this application's lifetime.
	Failed bool
}

// NewApplication returns an empty, open Application.
func NewApplication(id string) *Application {
	return &Application{ID: id, Live: make(map[int64]struct{})}
}

// AddTask registers a newly submitted task as live.
func (a *Application) AddTask(id int64) {
	a.Live[id] = struct{}{}
}

// RemoveTask marks a task terminal, removing it from the live set.
func (a *Application) RemoveTask(id int64) {
	delete(a.Live, id)
}

// Quiescent reports whether the application has no live tasks left.
func (a *Application) Quiescent() bool {
	return len(a.Live) == 0
}

// Done reports whether the application satisfies full destruction criteria
// modulo barrier release, which the caller tracks separately.
func (a *Application) Done() bool {
	return a.NoMoreTasks && a.Quiescent()
}
