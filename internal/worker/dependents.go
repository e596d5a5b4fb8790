package worker

import (
	"log/slog"

	"github.com/kyleterry/procguard/internal/record"
)

// RestartDependents implements the downward restart cascade triggered
// from within a parent's own worker once the parent has settled into
// RUNNING after a spawn: walk the parent's children one level,
// restarting whichever ones opted in. Grandchildren are not touched
// directly here — a restarted child's own eventual settle re-triggers
// this same walk from its worker, cascading transitively. Because this
// fires on every spawn, including a parent's respawn after its own
// death, the net effect is that dependents get kicked shortly after a
// parent restart.
//
// This is fire-and-forget: a failure restarting one child is logged and
// does not stop the walk over its siblings.
func RestartDependents(mgr *Manager, parent *record.Record, log *slog.Logger) {
	for _, child := range parent.Children() {
		if !child.RestartOnParentDeath || child.Skip || child.State() == record.StateInit {
			continue
		}

		child.SetRestartDelaySeconds(parent.WaitSeconds)

		if child.Monitored {
			if err := mgr.control.Restart(child.ID); err != nil {
				log.Error("dependent restart failed", "parent", parent.ID, "child", child.ID, "err", err)
			}
			continue
		}

		if child.HasWorker() {
			continue
		}
		mgr.Spawn(child)
	}
}
