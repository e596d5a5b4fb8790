// Package worker implements the per-record monitor: one goroutine per
// supervised process that spawns it, waits for it to die, and decides
// whether and when to bring it back.
package worker

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kyleterry/procguard/internal/control"
	"github.com/kyleterry/procguard/internal/env"
	"github.com/kyleterry/procguard/internal/lockfile"
	"github.com/kyleterry/procguard/internal/record"
)

// Manager dispatches and tracks the workers for every record in one
// graph. It implements scheduler.Spawner.
type Manager struct {
	Store *lockfile.Store
	Log   *slog.Logger

	control  *control.Controller
	baseEnv  *env.Env
	stopping atomic.Bool
	wg       sync.WaitGroup
}

// NewManager builds a Manager. baseEnv carries the configuration
// document's top-level global environment overrides (§ configuration
// "env" key), layered under every record's own per-process env; pass
// env.New() for a daemon with no globals configured.
func NewManager(store *lockfile.Store, log *slog.Logger, baseEnv *env.Env) *Manager {
	return &Manager{
		Store:   store,
		Log:     log,
		control: control.New(store),
		baseEnv: baseEnv,
	}
}

// Spawn starts a monitor goroutine for r. Calling Spawn on a record that
// already has a live worker is a caller bug; the scheduler never does
// this because Runnable excludes records with a worker.
func (m *Manager) Spawn(r *record.Record) {
	w := &worker{rec: r, store: m.Store, log: m.Log, mgr: m, baseEnv: m.baseEnv}
	r.SetWorker(w)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.run()
	}()
}

// Stop asks every worker to exit once it next observes a death, and
// blocks until they have.
func (m *Manager) Stop() {
	m.stopping.Store(true)
	m.wg.Wait()
}

func (m *Manager) stopped() bool { return m.stopping.Load() }
