package analyzer

import "taskrt/internal/request"

// pendingMainAccess tracks a blocked main_access request until every
// producer it depends on has reached a terminal state.
type pendingMainAccess struct {
	req       *request.Request
	remaining int
	result    request.MainAccessResult
}

// handleMainAccess resolves a main-thread access immediately if the datum
// has no in-flight producer, or registers the request to be woken once the
// last relevant producer finishes.
func (a *Analyser) handleMainAccess(r *request.Request) {
	p := r.MainAccess
	acc := a.rc.Data.Access(p.Ref, p.Direction, 0)
	result := request.MainAccessResult{Ref: acc.Ref, HasData: len(acc.Producers) > 0}

	if len(acc.Producers) == 0 {
		r.Signal(request.Result{Value: result})
		return
	}

	pending := &pendingMainAccess{req: r, result: result}
	for _, producer := range acc.Producers {
		if t, ok := a.rc.Graph.Task(producer); ok && !t.State.IsTerminal() {
			pending.remaining++
			a.mainWaiters[producer] = append(a.mainWaiters[producer], pending)
		}
	}
	pending.result.Producer = acc.Producers[len(acc.Producers)-1]

	if pending.remaining == 0 {
		r.Signal(request.Result{Value: pending.result})
	}
}

// resolveMainWaiters is called once per terminating task. On success
// (failure == nil) it decrements every waiter blocked on id and fires those
// that reach zero remaining producers. On failure it fires every waiter
// blocked on id immediately, since the datum they wanted will never be
// produced.
func (a *Analyser) resolveMainWaiters(id int64, failure error) {
	waiters, ok := a.mainWaiters[id]
	if !ok {
		return
	}
	delete(a.mainWaiters, id)

	for _, w := range waiters {
		if failure != nil {
			w.req.Signal(request.Result{Err: failure})
			continue
		}
		w.remaining--
		if w.remaining == 0 {
			w.req.Signal(request.Result{Value: w.result})
		}
	}
}
