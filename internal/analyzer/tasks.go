package analyzer

import (
	"sort"

	"taskrt/internal/request"
	"taskrt/internal/rterrors"
	"taskrt/internal/taskmodel"
)

// handleNewTask registers a task, wires its dependency edges per the
// direction table (§4.2), and pushes it onto the ready heap if it already
// qualifies.
func (a *Analyser) handleNewTask(p *request.NewTaskPayload) {
	t := taskmodel.NewTask(p.TaskID, p.AppID, p.Desc, p.Enforcing)
	a.rc.Graph.AddTask(t)
	a.rc.App(p.AppID).AddTask(t.ID)
	a.rc.Metrics.TasksAnalyzed.Inc()

	if p.Enforcing != 0 {
		a.enforcedBy[p.Enforcing] = append(a.enforcedBy[p.Enforcing], t.ID)
	}

	for i := range t.Description.Parameters {
		param := &t.Description.Parameters[i]
		acc := a.rc.Data.Access(param.Ref, param.Direction, t.ID)
		param.Ref = acc.Ref

		if acc.HasRead {
			a.reads[t.ID] = append(a.reads[t.ID], readRecord{ref: acc.Ref, version: acc.ReadVersion})
		}

		for _, producer := range acc.Producers {
			if !a.rc.Graph.Contains(producer) {
				// Already reclaimed, hence terminal: nothing to wait on.
				continue
			}
			if err := a.rc.Graph.AddEdge(producer, t.ID); err != nil {
				a.fault(err)
				return
			}
		}
	}

	if a.rc.Graph.Ready(t.ID) {
		a.pushReady(t)
	}
}

// completeTask finalizes a successful execution: releases this task's data
// read registrations, detaches its graph edges, wakes any successor that
// just became ready, and reclaims the node if possible.
func (a *Analyser) completeTask(t *taskmodel.Task) {
	t.State = taskmodel.Finished
	app := a.rc.App(t.AppID)
	app.RemoveTask(t.ID)

	a.releaseDataForTask(t)
	a.resolveMainWaiters(t.ID, nil)

	for _, succ := range a.rc.Graph.Successors(t.ID) {
		nowEmpty, err := a.rc.Graph.ReleasePredecessor(succ, t.ID)
		if err != nil {
			a.fault(err)
			return
		}
		a.rc.Graph.DetachSuccessor(t.ID, succ)
		if nowEmpty {
			if st, ok := a.rc.Graph.Task(succ); ok && a.rc.Graph.Ready(succ) {
				a.pushReady(st)
			}
		}
	}

	for _, dep := range a.enforcedBy[t.ID] {
		if dt, ok := a.rc.Graph.Task(dep); ok && a.rc.Graph.Ready(dep) {
			a.pushReady(dt)
		}
	}
	delete(a.enforcedBy, t.ID)

	if a.rc.Graph.Reclaimable(t.ID) {
		a.rc.Graph.Remove(t.ID)
	}

	a.checkBarriers(t.AppID)
}

// failCascade marks origin FAILED along with every task transitively
// reachable from it — either via a data dependency edge or via an
// enforcing relationship, since neither kind of dependent can still
// produce a meaningful result once its predecessor never finished.
func (a *Analyser) failCascade(origin *taskmodel.Task, outcome request.Outcome) {
	visited := map[int64]struct{}{origin.ID: {}}
	frontier := []int64{origin.ID}
	for i := 0; i < len(frontier); i++ {
		id := frontier[i]
		// DownstreamReachable walks the full data-edge closure from id in
		// one call; enforcedBy dependents are not graph edges, so they are
		// queued separately and get their own closure on a later pass.
		for _, s := range a.rc.Graph.DownstreamReachable(id) {
			if _, ok := visited[s]; !ok {
				visited[s] = struct{}{}
				frontier = append(frontier, s)
			}
		}
		for _, dep := range a.enforcedBy[id] {
			if _, ok := visited[dep]; !ok {
				visited[dep] = struct{}{}
				frontier = append(frontier, dep)
			}
		}
	}

	all := make([]int64, 0, len(visited))
	for id := range visited {
		all = append(all, id)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	appsSeen := make(map[string]struct{})
	for _, id := range all {
		t, ok := a.rc.Graph.Task(id)
		if !ok || t.State.IsTerminal() {
			continue
		}
		t.State = taskmodel.Failed
		if id == origin.ID {
			t.Exception = outcome.Exception
		}
		a.rc.Metrics.TasksFailed.Inc()
		app := a.rc.App(t.AppID)
		app.RemoveTask(id)
		app.Failed = true
		appsSeen[t.AppID] = struct{}{}

		a.releaseDataForTask(t)
		a.resolveMainWaiters(id, &rterrors.TaskFailure{TaskID: origin.ID, Reason: outcome.Reason})
		delete(a.enforcedBy, id)
	}

	for _, id := range all {
		for _, succ := range a.rc.Graph.Successors(id) {
			a.rc.Graph.ReleasePredecessor(succ, id)
			a.rc.Graph.DetachSuccessor(id, succ)
		}
	}

	for _, id := range all {
		if a.rc.Graph.Reclaimable(id) {
			a.rc.Graph.Remove(id)
		}
	}

	for appID := range appsSeen {
		a.checkBarriers(appID)
	}
}

// releaseDataForTask releases every reader registration t holds, marking
// superseded versions collectable once their last reader drops (§4.3).
func (a *Analyser) releaseDataForTask(t *taskmodel.Task) {
	for _, rec := range a.reads[t.ID] {
		if d, ok := a.rc.Data.Lookup(rec.ref); ok {
			a.rc.Data.ReleaseReaders(d, rec.version, t.ID)
		}
	}
	delete(a.reads, t.ID)
}

// handleTaskEnded is the TASK_ENDED entry point: it waits for every
// replicated copy to report before running completion/failure logic once.
func (a *Analyser) handleTaskEnded(p *request.TaskEndedPayload) {
	t, ok := a.rc.Graph.Task(p.TaskID)
	if !ok {
		// Already reclaimed (e.g. a second copy reporting after cascade
		// failure already tore the node down). Nothing left to do.
		return
	}

	if t.PendingExecution > 0 {
		t.PendingExecution--
	}
	if t.PendingExecution > 0 {
		return
	}

	if p.Outcome.Failed {
		a.failCascade(t, p.Outcome)
		return
	}
	a.completeTask(t)
}

func (a *Analyser) handleBarrier(r *request.Request) {
	p := r.Barrier
	app := a.rc.App(p.AppID)
	if app.Quiescent() {
		r.Signal(request.Result{Value: request.BarrierResult{Failed: app.Failed}})
		return
	}
	a.barriers[p.AppID] = append(a.barriers[p.AppID], r)
}

func (a *Analyser) handleEndOfApp(r *request.Request) {
	p := r.EndOfApp
	app := a.rc.App(p.AppID)
	app.NoMoreTasks = true
	if app.Done() {
		r.Signal(request.Result{Value: request.EndOfAppResult{Failed: app.Failed}})
		app.Closed = true
		return
	}
	a.endOfApp[p.AppID] = append(a.endOfApp[p.AppID], r)
}

// checkBarriers releases every barrier waiter for appID once it has gone
// quiescent, then checks whether end_of_app also now qualifies.
func (a *Analyser) checkBarriers(appID string) {
	app := a.rc.App(appID)
	if !app.Quiescent() {
		return
	}
	for _, r := range a.barriers[appID] {
		r.Signal(request.Result{Value: request.BarrierResult{Failed: app.Failed}})
	}
	delete(a.barriers, appID)
	a.checkEndOfApp(appID)
}

func (a *Analyser) checkEndOfApp(appID string) {
	app := a.rc.App(appID)
	if !app.Done() {
		return
	}
	for _, r := range a.endOfApp[appID] {
		r.Signal(request.Result{Value: request.EndOfAppResult{Failed: app.Failed}})
	}
	delete(a.endOfApp, appID)
	app.Closed = true
}
