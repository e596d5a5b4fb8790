// Package control implements the short-lived control-plane operations:
// kill, start, restart, delete, list and shutdown-all. Every operation
// goes through the lockfile protocol and standard signals; none of them
// rendezvous with a running worker through shared memory.
package control

import (
	"errors"
	"fmt"
	"sort"
	"syscall"
	"time"

	"github.com/kyleterry/procguard/internal/lockfile"
)

// PrimaryID and BackupID are the reserved lockfile ids the self-supervisor
// pair writes its own liveness records under.
const (
	PrimaryID = "procmon1"
	BackupID  = "procmon2"
)

// ErrTargetMissing is returned when a command names an id with no
// lockfile on disk.
var ErrTargetMissing = errors.New("control: target lockfile missing")

// Controller operates on a lockfile store on behalf of the CLI and, for
// dependent restarts, on behalf of a monitor worker in the same process.
type Controller struct {
	Store *lockfile.Store
}

func New(store *lockfile.Store) *Controller {
	return &Controller{Store: store}
}

// Kill suspends monitoring of id: the worker will stop respawning it
// until Start is called, and the current process is killed outright.
func (c *Controller) Kill(id string) error {
	// Read the header before start_time is reset, so the reused-pid
	// check compares the start time the spawner recorded.
	hdr, err := c.Store.ReadHeader(id)
	if err != nil {
		return wrapMissing(id, err)
	}
	if err := c.Store.SetControl(id, lockfile.ControlSuspend); err != nil {
		return wrapMissing(id, err)
	}
	if err := c.Store.ResetStartTime(id, time.Now()); err != nil {
		return wrapMissing(id, err)
	}
	return signalHeader(id, hdr, syscall.SIGKILL)
}

// Start clears a suspension set by Kill. The worker resumes on its next
// poll of the control word.
func (c *Controller) Start(id string) error {
	if err := c.Store.SetControl(id, lockfile.ControlNormal); err != nil {
		return wrapMissing(id, err)
	}
	return nil
}

// Restart kills id's current process; its own worker's respawn logic
// handles the rest.
func (c *Controller) Restart(id string) error {
	return c.signal(id, syscall.SIGKILL)
}

// Delete marks id for permanent removal: the worker deletes the
// lockfile and exits instead of respawning.
func (c *Controller) Delete(id string) error {
	hdr, err := c.Store.ReadHeader(id)
	if err != nil {
		return wrapMissing(id, err)
	}
	if err := c.Store.SetControl(id, lockfile.ControlDelete); err != nil {
		return wrapMissing(id, err)
	}
	if err := c.Store.ResetStartTime(id, time.Now()); err != nil {
		return wrapMissing(id, err)
	}
	return signalHeader(id, hdr, syscall.SIGKILL)
}

// signal delivers sig to the pid recorded for id, unless that pid looks
// stale — either absent or, per lockfile.IsStale, reused by an unrelated
// process since the record was last written. Signaling a reused pid
// would hit whatever the kernel has since handed that number to, not the
// supervised process the caller meant.
func (c *Controller) signal(id string, sig syscall.Signal) error {
	hdr, err := c.Store.ReadHeader(id)
	if err != nil {
		return wrapMissing(id, err)
	}
	return signalHeader(id, hdr, sig)
}

func signalHeader(id string, hdr lockfile.Header, sig syscall.Signal) error {
	if hdr.PID == 0 || lockfile.IsStale(hdr) {
		return nil
	}
	if err := syscall.Kill(int(hdr.PID), sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("control: signal %s: %w", id, err)
	}
	return nil
}

// ShutdownAll deletes every supervised record, waits for the workers to
// settle, then deletes and finally unlinks the two supervisor lockfiles
// themselves — each exactly once.
func (c *Controller) ShutdownAll() error {
	ids, err := c.Store.List()
	if err != nil {
		return fmt.Errorf("control: shutdown-all: %w", err)
	}
	for _, id := range ids {
		if id == PrimaryID || id == BackupID {
			continue
		}
		_ = c.Delete(id)
	}
	time.Sleep(time.Second)

	_ = c.Delete(PrimaryID)
	_ = c.Delete(BackupID)
	time.Sleep(time.Second)

	_ = c.Store.Delete(PrimaryID)
	_ = c.Store.Delete(BackupID)
	return nil
}

func wrapMissing(id string, err error) error {
	if errors.Is(err, lockfile.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrTargetMissing, id)
	}
	return err
}

// Entry is one row of list output.
type Entry struct {
	Name     string
	PID      int
	RunCount uint32
	Since    time.Duration
	State    string // "running" or "stopped"
	Exec     string
}

// List enumerates every lockfile, probing pid liveness for each, sorted
// by id for a stable display order. A record whose control word is
// ControlDelete is omitted: it has been deleted and only waits for its
// worker to unlink the file.
func (c *Controller) List() ([]Entry, error) {
	ids, err := c.Store.List()
	if err != nil {
		return nil, fmt.Errorf("control: list: %w", err)
	}
	sort.Strings(ids)

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		hdr, err := c.Store.ReadHeader(id)
		if err != nil {
			continue // torn or racing-delete record; skip rather than fail the whole listing
		}
		if hdr.Terminate == lockfile.ControlDelete {
			continue
		}
		state := "stopped"
		if !lockfile.IsStale(hdr) {
			state = "running"
		}
		entries = append(entries, Entry{
			Name:     id,
			PID:      int(hdr.PID),
			RunCount: hdr.RunCount,
			Since:    time.Since(hdr.StartTimeAsTime()),
			State:    state,
			Exec:     hdr.Exec,
		})
	}
	return entries, nil
}
