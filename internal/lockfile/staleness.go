package lockfile

// IsStale reports whether the pid recorded in hdr should be treated as
// "not running, eligible for restart" — either because the pid no longer
// exists at all, or because a live pid with that number started at a
// different time than hdr.StartTime records, meaning the kernel recycled
// the pid onto an unrelated process after our original child exited.
//
// The plain non-existence case is the normal path after a crash-recovery
// restart of the supervisor itself (§4.1). The pid-reuse case sharpens
// that edge case using the same process-start-time comparison the
// teacher's pidfile detector made to avoid acting on a stale pid.
func IsStale(hdr Header) bool {
	if hdr.PID == 0 {
		return true
	}
	if !pidAlive(int(hdr.PID)) {
		return true
	}
	if hdr.StartTime <= 0 {
		return false
	}
	actual := procStartUnix(int(hdr.PID))
	if actual <= 0 {
		return false // can't determine; don't false-positive a live process as stale
	}
	return actual != hdr.StartTime
}
