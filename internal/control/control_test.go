package control

import (
	"os"
	"testing"
	"time"

	"github.com/kyleterry/procguard/internal/lockfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) (*Controller, *lockfile.Store) {
	t.Helper()
	store := lockfile.NewStore(t.TempDir())
	return New(store), store
}

func TestKillSetsControlWordAndResetsStartTime(t *testing.T) {
	c, store := newTestController(t)
	h, err := store.Create("filevars", os.Getpid(), "filevars", time.Unix(1, 0))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	require.NoError(t, c.Kill("filevars"))

	hdr, err := store.ReadHeader("filevars")
	require.NoError(t, err)
	assert.Equal(t, lockfile.ControlSuspend, hdr.Terminate)
	assert.NotEqual(t, int64(1), hdr.StartTime, "expected ResetStartTime to change start_time")
}

func TestStartClearsControlWord(t *testing.T) {
	c, store := newTestController(t)
	h, err := store.Create("filevars", 1, "filevars", time.Now())
	require.NoError(t, err)
	require.NoError(t, h.Close())

	require.NoError(t, c.Kill("filevars"))
	require.NoError(t, c.Start("filevars"))

	hdr, err := store.ReadHeader("filevars")
	require.NoError(t, err)
	assert.Equal(t, lockfile.ControlNormal, hdr.Terminate)
}

func TestDeleteMissingTargetIsReported(t *testing.T) {
	c, _ := newTestController(t)
	assert.Error(t, c.Delete("ghost"))
}

func TestListSortsByID(t *testing.T) {
	c, store := newTestController(t)
	for _, id := range []string{"filevars", "corevars", "execvars"} {
		// StartTime is left zero: these records weren't really spawned by
		// a worker, so there's no real start time to assert against the
		// test process's own, and a zero StartTime tells IsStale to skip
		// the reused-pid check rather than flag a false positive.
		h, err := store.Create(id, os.Getpid(), id, time.Unix(0, 0))
		require.NoErrorf(t, err, "Create(%s)", id)
		require.NoError(t, h.Close())
	}

	entries, err := c.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	want := []string{"corevars", "execvars", "filevars"}
	for i, e := range entries {
		assert.Equal(t, want[i], e.Name)
		assert.Equal(t, "running", e.State, "pid is our own, should read as running")
	}
}

func TestListReportsStoppedForReusedPID(t *testing.T) {
	c, store := newTestController(t)
	// A live pid recorded with a start_time that does not match its real
	// start time looks exactly like a lockfile whose original process
	// exited and whose pid number got handed to something else by the
	// kernel afterward.
	h, err := store.Create("filevars", os.Getpid(), "filevars", time.Unix(1, 0))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	entries, err := c.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stopped", entries[0].State, "reused pid should not be reported as running")
}

func TestSignalSkipsReusedPID(t *testing.T) {
	c, store := newTestController(t)
	h, err := store.Create("filevars", os.Getpid(), "filevars", time.Unix(1, 0))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	// Restart signals the recorded pid directly; since the pid looks
	// reused it must no-op rather than deliver SIGKILL to this test
	// process.
	require.NoError(t, c.Restart("filevars"))
}

func TestShutdownAllDeletesSupervisorsExactlyOnce(t *testing.T) {
	c, store := newTestController(t)
	for _, id := range []string{"filevars", PrimaryID, BackupID} {
		h, err := store.Create(id, os.Getpid(), id, time.Now())
		require.NoErrorf(t, err, "Create(%s)", id)
		require.NoError(t, h.Close())
	}

	require.NoError(t, c.ShutdownAll())

	// An ordinary record is only marked for deletion; unlinking its
	// lockfile is left to its own worker.
	hdr, err := store.ReadHeader("filevars")
	require.NoError(t, err)
	assert.Equal(t, lockfile.ControlDelete, hdr.Terminate)

	for _, id := range []string{PrimaryID, BackupID} {
		_, err := store.ReadHeader(id)
		assert.ErrorIsf(t, err, lockfile.ErrNotFound, "expected %s lockfile to be gone", id)
	}
}
