// Package scheduler implements the fixed-point runnability pass: given
// the current state of every record in a graph, start whatever can be
// started, as many times as progress can still be made, and return.
package scheduler

import (
	"log/slog"

	"github.com/kyleterry/procguard/internal/record"
)

// Spawner dispatches a monitor worker for r. It is an interface rather
// than a direct dependency on internal/worker, so the scheduler can be
// driven by a fake spawner in tests; worker.Manager implements it.
type Spawner interface {
	Spawn(r *record.Record)
}

// Runnable reports whether r may be started right now: every parent is
// RUNNING, r is not marked skip, and no worker already supervises it.
func Runnable(r *record.Record) bool {
	if r.Skip {
		return false
	}
	if r.HasWorker() {
		return false
	}
	for _, p := range r.Parents() {
		if p.State() != record.StateRunning {
			return false
		}
	}
	return true
}

// Run drives the fixed-point dispatch loop over g: repeated passes over
// Records() in configuration order, spawning every runnable record,
// until a full pass makes no change. Configuration order is the
// tie-break among independent roots and is preserved because Records()
// always returns them in that order and a pass never reorders its scan.
func Run(g *record.Graph, s Spawner, log *slog.Logger) {
	for {
		changed := false
		for _, r := range g.Records() {
			if !Runnable(r) {
				continue
			}
			s.Spawn(r)
			changed = true
			if log != nil {
				log.Info("scheduler dispatched record", "id", r.ID)
			}
		}
		if !changed {
			return
		}
	}
}
