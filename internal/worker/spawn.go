package worker

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/kyleterry/procguard/internal/env"
)

// tokenize splits a configured exec line on whitespace. No quoting or
// shell expansion is performed — the configuration author is expected to
// give a plain argv, matching the raw string stored verbatim in the
// lockfile.
func tokenize(execLine string) []string {
	return strings.Fields(execLine)
}

// buildCmd constructs the exec.Cmd for a record's spawn attempt: the
// child is placed in its own session via setsid so it detaches from the
// supervisor's controlling terminal and outlives a supervisor restart in
// its own right, and its environment is the daemon's own environment,
// layered with the configuration's global overrides and then the
// record's own per-process overrides (internal/env.Env.Merge's
// base -> globals -> perProc order). A nil baseEnv falls back to a bare
// OS-environment Env.
func buildCmd(execLine string, perProcEnv []string, baseEnv *env.Env) (*exec.Cmd, error) {
	argv := tokenize(execLine)
	if len(argv) == 0 {
		return nil, fmt.Errorf("worker: empty exec line")
	}
	if baseEnv == nil {
		baseEnv = env.New()
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = baseEnv.Merge(perProcEnv)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd, nil
}
