package worker

import (
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/kyleterry/procguard/internal/env"
	"github.com/kyleterry/procguard/internal/lockfile"
	"github.com/kyleterry/procguard/internal/metrics"
	"github.com/kyleterry/procguard/internal/record"
)

const settleDelay = 500 * time.Millisecond

// worker owns one record's lifecycle: spawn or adopt, wait for death,
// decide whether to respawn. Death detection goes through the
// lockfile's whole-file flock(2) lock rather than cmd.Wait(): a direct
// os/exec child only gives this worker a waitpid-eligible handle for as
// long as this same worker process is the one that forked it, but after
// a primary-supervisor crash (§4.6) the fresh primary's workers are
// never the true parent of any already-running child, so a flock wait
// on the lockfile — which descends across fork and the exec.ExtraFiles
// hand-off, and keeps working even once the forking process is gone —
// is the one death signal that holds in both cases. cmd.Wait() is kept
// only as a best-effort zombie reap for children this worker itself
// forked.
type worker struct {
	rec     *record.Record
	store   *lockfile.Store
	log     *slog.Logger
	mgr     *Manager
	baseEnv *env.Env

	cmd *exec.Cmd
}

func (w *worker) run() {
	defer w.rec.SetWorker(nil)

	for {
		if w.mgr.stopped() {
			w.rec.SetState(record.StateTerminated)
			return
		}

		waiter, err := w.spawnOrAttach()
		if err != nil {
			w.log.Error("spawn failed", "id", w.rec.ID, "err", err)
			w.sleepRestartDelay()
			continue
		}

		waitErr := waiter.WaitForRelease()
		_ = waiter.Close()
		if w.cmd != nil {
			_ = w.cmd.Wait()
		}
		w.log.Info("observed death", "id", w.rec.ID, "err", waitErr)

		if stop := w.handleControlWord(); stop {
			return
		}

		if w.mgr.stopped() {
			w.rec.SetState(record.StateTerminated)
			return
		}

		if !w.rec.Monitored && w.rec.RunCount() >= w.rec.MaxParentRunCount() {
			transition(w.rec, record.StateTerminated)
			return
		}

		transition(w.rec, record.StateWaiting)
		w.sleepRestartDelay()
		metrics.IncRestart(w.rec.ID)
	}
}

// transition moves rec to s, recording how long it spent in its previous
// state before flipping the current-state gauge. Every state change in
// this package goes through it so state_seconds and current_state never
// drift apart.
func transition(rec *record.Record, s record.State) {
	prev := rec.State()
	metrics.SetStateSeconds(rec.ID, prev.String(), rec.StateDuration().Seconds())
	rec.SetState(s)
	metrics.SetCurrentState(rec.ID, s.String())
}

// handleControlWord implements the dispatch step of the outer loop:
// delete causes the worker to remove its lockfile and exit for good;
// suspend parks the worker in a 1Hz poll until cleared by start.
func (w *worker) handleControlWord() (shouldExit bool) {
	for {
		hdr, err := w.store.ReadHeader(w.rec.ID)
		if err != nil {
			w.log.Error("read header after death", "id", w.rec.ID, "err", err)
			return false
		}
		switch hdr.Terminate {
		case lockfile.ControlDelete:
			_ = w.store.Delete(w.rec.ID)
			transition(w.rec, record.StateTerminated)
			return true
		case lockfile.ControlSuspend:
			transition(w.rec, record.StateTerminated)
			if w.mgr.stopped() {
				return true
			}
			time.Sleep(time.Second)
			continue
		default:
			return false
		}
	}
}

func (w *worker) sleepRestartDelay() {
	if d := w.rec.RestartDelaySeconds(); d > 0 {
		time.Sleep(time.Duration(d) * time.Second)
	}
}

// spawnOrAttach decides, from the lockfile's own busy state, whether
// this generation forks a fresh child or adopts one already running
// under a previous, now-dead supervisor. It returns the handle the
// caller should block on via WaitForRelease.
func (w *worker) spawnOrAttach() (*lockfile.Handle, error) {
	handle, err := w.store.Create(w.rec.ID, 0, w.rec.Exec, time.Now())
	if errors.Is(err, lockfile.ErrLockBusy) {
		return w.attach()
	}
	if err != nil {
		return nil, err
	}
	return w.spawn(handle)
}

// attach takes over monitoring of a child this worker did not fork:
// the lockfile's flock lock is already held by a descriptor the real
// child inherited from a now-dead prior supervisor, so Create reports
// ErrLockBusy instead of handing out a fresh lock. There is no
// *exec.Cmd here — w.cmd stays nil, and cmd.Wait() is never attempted
// for this generation.
func (w *worker) attach() (*lockfile.Handle, error) {
	handle, err := w.store.Open(w.rec.ID)
	if err != nil {
		return nil, err
	}
	hdr, err := handle.ReadHeader()
	if err != nil {
		_ = handle.Close()
		return nil, err
	}
	w.cmd = nil
	w.rec.SetRunCount(int(hdr.RunCount))
	w.log.Info("adopting already-running child", "id", w.rec.ID, "pid", hdr.PID, "run_count", hdr.RunCount)
	transition(w.rec, record.StateRunning)
	RestartDependents(w.mgr, w.rec, w.log)
	return handle, nil
}

// spawn forks and execs a brand new child, handing it the already-locked
// descriptor via ExtraFiles before relinquishing the worker's own
// reference to it, so the flock lock's remaining lifetime tracks the
// child's open file description rather than this worker process.
func (w *worker) spawn(handle *lockfile.Handle) (*lockfile.Handle, error) {
	n := w.rec.IncRunCount()

	cmd, err := buildCmd(w.rec.Exec, w.rec.Env, w.baseEnv)
	if err != nil {
		_ = handle.Close()
		return nil, err
	}
	cmd.ExtraFiles = append(cmd.ExtraFiles, handle.File())

	if err := cmd.Start(); err != nil {
		_ = handle.Close()
		return nil, err
	}
	w.cmd = cmd
	pid := cmd.Process.Pid

	hdr := lockfile.Header{
		PID:       uint32(pid),
		Terminate: lockfile.ControlNormal,
		RunCount:  uint32(n),
		StartTime: time.Now().Unix(),
		Exec:      w.rec.Exec,
	}
	if err := handle.WriteHeader(hdr); err != nil {
		_ = handle.Close()
		return nil, err
	}

	// Relinquish our own copy: once this closes, the exec'd child's
	// inherited duplicate is the lock's last remaining holder.
	_ = handle.Close()

	waiter, err := w.store.Open(w.rec.ID)
	if err != nil {
		return nil, err
	}
	if err := waiter.TryLockExclusive(); err == nil {
		w.log.Warn("liveness lock was not held by child immediately after spawn", "id", w.rec.ID)
	} else if !errors.Is(err, lockfile.ErrLockBusy) {
		w.log.Warn("could not probe liveness lock", "id", w.rec.ID, "err", err)
	}

	metrics.IncSpawn(w.rec.ID)
	transition(w.rec, record.StateStarted)

	if w.rec.WaitSeconds > 0 {
		time.Sleep(time.Duration(w.rec.WaitSeconds) * time.Second)
	}
	transition(w.rec, record.StateRunning)

	time.Sleep(settleDelay)
	RestartDependents(w.mgr, w.rec, w.log)

	return waiter, nil
}
