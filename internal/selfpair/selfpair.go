// Package selfpair implements the two mutually-supervising daemon roles:
// at any time either both are alive and each is watching the other, or
// one is alive and has an outstanding attempt to bring the other back.
//
// Unlike an ordinary supervised record, primary and backup are not in a
// direct os/exec parent/child relationship after the initial handoff —
// on recovery from a crash, the survivor re-execs the other as a
// detached process whose *os/exec.Cmd is kept only to reap it. Death
// detection here therefore genuinely uses the lockfile's fcntl byte-0
// lock rather than cmd.Wait(), and this is the one place in the whole
// system where WaitForDeath can observe a kernel-reported deadlock: a
// freshly-started primary and backup blocking on each other's lockfile
// at the same moment forms the only lock-wait cycle the daemon ever
// constructs.
package selfpair

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kyleterry/procguard/internal/control"
	"github.com/kyleterry/procguard/internal/lockfile"
)

// Role identifies which half of the pair this process instance is.
type Role int

const (
	Primary Role = iota
	Backup
)

func (r Role) other() Role {
	if r == Primary {
		return Backup
	}
	return Primary
}

func (r Role) id() string {
	if r == Primary {
		return control.PrimaryID
	}
	return control.BackupID
}

func (r Role) flag() string {
	if r == Primary {
		return "-F"
	}
	return "-f"
}

// Pair runs one half of the self-supervisor pair: it registers its own
// liveness under its own reserved lockfile id and runs a watcher
// goroutine that keeps the other half alive.
type Pair struct {
	Role       Role
	ConfigPath string
	Store      *lockfile.Store
	Log        *slog.Logger

	self    *lockfile.Handle
	stopped atomic.Bool
}

// Start creates this process's own lockfile (so list shows it) and
// launches the watcher for the other role. It returns as soon as the
// watcher goroutine is started; the first attempt to bring up the other
// side happens in that goroutine, which runs until Stop is called.
func (p *Pair) Start() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("selfpair: resolve executable: %w", err)
	}
	invocation := fmt.Sprintf("%s %s %s", exe, p.Role.flag(), p.ConfigPath)

	self, err := p.Store.Create(p.Role.id(), os.Getpid(), invocation, time.Now())
	if err != nil {
		return fmt.Errorf("selfpair: create own lockfile: %w", err)
	}
	p.self = self

	go p.watch(exe)
	return nil
}

func (p *Pair) Stop() {
	p.stopped.Store(true)
	if p.self != nil {
		_ = p.self.Close()
	}
}

// watch owns the lifecycle of the opposite role: spawn it if it is not
// already present, then repeatedly WaitForDeath on its lockfile and
// respawn whenever it dies.
func (p *Pair) watch(exe string) {
	other := p.Role.other()

	for !p.stopped.Load() {
		if err := p.spawnOther(exe, other); err != nil {
			p.Log.Error("selfpair: spawn failed", "role", other, "err", err)
			time.Sleep(time.Second)
			continue
		}

		handle, err := p.Store.Open(other.id())
		if err != nil {
			p.Log.Error("selfpair: open companion lockfile", "role", other, "err", err)
			time.Sleep(time.Second)
			continue
		}

		err = handle.WaitForDeath()
		_ = handle.Close()
		switch {
		case err == nil:
			p.Log.Info("selfpair: companion died, respawning", "role", other)
		case err == lockfile.ErrDeadlock:
			p.Log.Warn("selfpair: deadlock detected, falling back to polling", "role", other)
			p.pollUntilDead(other)
		default:
			p.Log.Error("selfpair: WaitForDeath", "role", other, "err", err)
			time.Sleep(time.Second)
		}
	}
}

// pollUntilDead is the 1Hz fallback used only after a kernel-reported
// deadlock; ordinary supervised children never take this path.
func (p *Pair) pollUntilDead(other Role) {
	for !p.stopped.Load() {
		hdr, err := p.Store.ReadHeader(other.id())
		if err != nil || !lockfile.Alive(int(hdr.PID)) {
			return
		}
		time.Sleep(time.Second)
	}
}

// spawnOther forks and execs a fresh instance of the binary in the
// opposite role. It deliberately does not touch the companion's
// lockfile: the new process's own Pair.Start call creates and locks it
// for itself on startup, exactly as this process did for its own id.
// That is what makes the lock's lifetime track the companion process's
// lifetime rather than this watcher's.
func (p *Pair) spawnOther(exe string, other Role) error {
	if hdr, err := p.Store.ReadHeader(other.id()); err == nil && lockfile.Alive(int(hdr.PID)) {
		return nil
	}
	cmd := exec.Command(exe, other.flag(), p.ConfigPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }() // reap once it eventually exits; we don't block on it
	return nil
}
