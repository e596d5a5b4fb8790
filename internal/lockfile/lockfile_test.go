package lockfile

import (
	"os"
	"testing"
	"time"
)

func TestCreateWritesHeaderAndLocks(t *testing.T) {
	s := NewStore(t.TempDir())
	now := time.Now()
	h, err := s.Create("varserver", 1234, "varserver --config x", now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() { _ = h.Close() }()

	hdr, err := s.ReadHeader("varserver")
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.PID != 1234 {
		t.Fatalf("pid = %d, want 1234", hdr.PID)
	}
	if hdr.Exec != "varserver --config x" {
		t.Fatalf("exec = %q", hdr.Exec)
	}
	if hdr.StartTime != now.Unix() {
		t.Fatalf("start_time = %d, want %d", hdr.StartTime, now.Unix())
	}
}

func TestCreateFailsWhenAlreadyLocked(t *testing.T) {
	s := NewStore(t.TempDir())
	h1, err := s.Create("x", 1, "x", time.Now())
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	defer func() { _ = h1.Close() }()

	_, err = s.Create("x", 2, "x", time.Now())
	if err == nil {
		t.Fatal("expected second Create on same id to fail")
	}
}

func TestOpenRetriesThenNotFound(t *testing.T) {
	s := NewStore(t.TempDir())
	start := time.Now()
	_, err := s.Open("ghost")
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Fatalf("expected Open to retry for ~400ms before giving up, elapsed=%v", elapsed)
	}
}

func TestSetControlRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	h, err := s.Create("x", 1, "x", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() { _ = h.Close() }()

	for _, word := range []uint32{ControlNormal, ControlSuspend, ControlDelete} {
		if err := s.SetControl("x", word); err != nil {
			t.Fatalf("SetControl(%x): %v", word, err)
		}
		hdr, err := s.ReadHeader("x")
		if err != nil {
			t.Fatalf("ReadHeader: %v", err)
		}
		if hdr.Terminate != word {
			t.Fatalf("terminate = %x, want %x", hdr.Terminate, word)
		}
	}
}

func TestResetStartTime(t *testing.T) {
	s := NewStore(t.TempDir())
	h, err := s.Create("x", 1, "x", time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() { _ = h.Close() }()

	later := time.Unix(2000, 0)
	if err := s.ResetStartTime("x", later); err != nil {
		t.Fatalf("ResetStartTime: %v", err)
	}
	hdr, err := s.ReadHeader("x")
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.StartTime != 2000 {
		t.Fatalf("start_time = %d, want 2000", hdr.StartTime)
	}
}

func TestDeleteUnlinksFile(t *testing.T) {
	s := NewStore(t.TempDir())
	h, err := s.Create("x", 1, "x", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = h.Close()

	if err := s.Delete("x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(s.Path("x")); !os.IsNotExist(err) {
		t.Fatalf("expected lockfile to be gone, stat err = %v", err)
	}
	// Deleting an already-absent lockfile is not an error.
	if err := s.Delete("x"); err != nil {
		t.Fatalf("Delete on absent file: %v", err)
	}
}

func TestReadHeaderShortRecordIsUnusable(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := os.WriteFile(s.Path("torn"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := s.ReadHeader("torn")
	if err != ErrUnusable {
		t.Fatalf("err = %v, want ErrUnusable", err)
	}
}

func TestWaitForDeathReturnsOnRelease(t *testing.T) {
	s := NewStore(t.TempDir())
	owner, err := s.Create("x", os.Getpid(), "x", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	observer, err := s.Open("x")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = observer.Close() }()

	done := make(chan error, 1)
	go func() { done <- observer.WaitForDeath() }()

	select {
	case <-done:
		t.Fatal("WaitForDeath returned before the owner released the lock")
	case <-time.After(100 * time.Millisecond):
	}

	if err := owner.Close(); err != nil { // closing releases the fcntl lock
		t.Fatalf("owner.Close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForDeath: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForDeath did not return after owner released the lock")
	}
}

func TestIsStaleForNonexistentPID(t *testing.T) {
	hdr := Header{PID: 999999999, StartTime: time.Now().Unix()}
	if !IsStale(hdr) {
		t.Fatal("expected nonexistent pid to be stale")
	}
}

func TestIsStaleForZeroPID(t *testing.T) {
	if !IsStale(Header{}) {
		t.Fatal("expected zero pid to be stale")
	}
}
