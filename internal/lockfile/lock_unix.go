//go:build !windows

package lockfile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// errWouldBlock is the sentinel the non-blocking lock helpers wrap
// EAGAIN/EACCES/EWOULDBLOCK in, so callers can distinguish "someone else
// holds it" from a real I/O error without depending on unix error values
// directly.
var errWouldBlock = errors.New("lockfile: would block")

func exclusiveFlockT(start, length int64) unix.Flock_t {
	return unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: 0, // io.SeekStart
		Start:  start,
		Len:    length,
	}
}

// fcntlTryLockExclusive acquires byte range [0,1) non-blockingly via
// fcntl. A fcntl record lock belongs to the (process, inode) pair rather
// than to an open file description, so it does not descend across
// fork+exec — closing any one of the process's descriptors on the file,
// including one a child inherited, drops the lock for every descriptor
// the process holds on it. That makes it useless for tracking a forked
// child's liveness, but it is exactly the primitive the kernel runs its
// deadlock detector over, which is why the self-supervisor pair (the one
// place a lock-wait cycle can actually form) still uses it.
func fcntlTryLockExclusive(f *os.File) error {
	lk := exclusiveFlockT(0, 1)
	if err := unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lk); err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EACCES) {
			return errWouldBlock
		}
		return err
	}
	return nil
}

// flockTryExclusive acquires an exclusive flock(2) lock on f
// non-blockingly. Unlike a fcntl record lock, a flock lock belongs to
// the open file description created by the call that opened f: fork()
// duplicates that description rather than recreating it, and exec()
// leaves it alone as long as the descriptor survives (i.e. was handed to
// the child via exec.Cmd.ExtraFiles, which Go clears O_CLOEXEC on for
// that one descriptor). A lock taken here before fork+exec is therefore
// still held afterward — by the exec'd child itself — even once the
// process that originally called flock(2) has exited. That is what lets
// an ordinary supervised child's liveness be tracked independently of
// whichever supervisor process happened to fork it.
func flockTryExclusive(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return errWouldBlock
		}
		return err
	}
	return nil
}

// flockWaitExclusive blocks until f's open file description can be
// locked exclusively, i.e. until every descriptor referencing it —
// including one duplicated across fork+exec into a supervised child —
// has been closed. flock(2) carries no notion of ownership by a
// particular process, so the kernel never reports a deadlock on this
// path; an ordinary supervised child never in turn waits on anything, so
// no cycle can form here regardless.
func flockWaitExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

func flockUnlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// WaitForDeath blocks until this handle can acquire the fcntl exclusive
// lock on byte 0 of its own lockfile, i.e. until whoever held it has
// died or released it. This is reserved for the self-supervisor pair:
// primary and backup are independent processes watching each other, not
// a forked parent and its own exec'd child, so the fcntl lock's
// per-process ownership is exactly what is being tested here, and a
// freshly-started pair blocking on each other's lockfile at the same
// moment is the one lock-wait cycle the daemon ever constructs —
// reported back as ErrDeadlock.
func (h *Handle) WaitForDeath() error {
	lk := exclusiveFlockT(0, 1)
	err := unix.FcntlFlock(h.f.Fd(), unix.F_SETLKW, &lk)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EDEADLK) {
		return ErrDeadlock
	}
	return err
}

// WaitForRelease blocks until h's flock(2) lock is free — the ordinary
// supervised child's counterpart to WaitForDeath. It has no deadlock
// path: an ordinary child never itself waits on another lock, so no
// cycle through it is possible.
func (h *Handle) WaitForRelease() error {
	return flockWaitExclusive(h.f)
}

// Unlock releases both lock flavours this handle might hold. Safe to
// call even if neither is held.
func (h *Handle) Unlock() error {
	_ = flockUnlock(h.f)
	lk := unix.Flock_t{Type: unix.F_UNLCK, Whence: 0, Start: 0, Len: 1}
	return unix.FcntlFlock(h.f.Fd(), unix.F_SETLK, &lk)
}

// TryLockExclusive probes the flock(2) lock non-blockingly, returning
// ErrLockBusy if something else already holds it. The worker calls this
// right after handing a freshly-locked descriptor to a child via
// ExtraFiles, as a sanity check that the child — not the worker itself —
// is now the lock's sole holder.
func (h *Handle) TryLockExclusive() error {
	if err := flockTryExclusive(h.f); err != nil {
		if errors.Is(err, errWouldBlock) {
			return ErrLockBusy
		}
		return err
	}
	return nil
}

// File exposes the underlying descriptor so the worker can hand it to a
// child via exec.Cmd.ExtraFiles — the one way in Go to keep a descriptor
// (and the flock(2) lock tied to its open file description) alive across
// fork and exec despite os.File's default O_CLOEXEC.
func (h *Handle) File() *os.File { return h.f }
