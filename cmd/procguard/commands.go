package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kyleterry/procguard/internal/config"
	"github.com/kyleterry/procguard/internal/control"
	"github.com/kyleterry/procguard/internal/lockfile"
	"github.com/kyleterry/procguard/internal/logger"
	"github.com/kyleterry/procguard/internal/metrics"
	"github.com/kyleterry/procguard/internal/record"
	"github.com/kyleterry/procguard/internal/scheduler"
	"github.com/kyleterry/procguard/internal/selfpair"
	"github.com/kyleterry/procguard/internal/since"
	"github.com/kyleterry/procguard/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
)

// run dispatches a parsed Flags value to the right operation and
// returns the process exit code. It is kept free of cobra, and takes
// its lockfile store as a parameter, so it can be exercised directly in
// tests without touching /tmp.
func run(f Flags, store *lockfile.Store, stdout, stderr io.Writer) int {
	ctl := control.New(store)

	switch {
	case f.PrimaryConfigPath != "":
		return runDaemon(f, selfpair.Primary, f.PrimaryConfigPath, store)
	case f.BackupConfigPath != "":
		return runDaemon(f, selfpair.Backup, f.BackupConfigPath, store)
	case f.List, f.ListFormat != "":
		return runList(ctl, f.ListFormat, stdout)
	case f.Kill != "":
		return runSimple(ctl.Kill(f.Kill), stderr)
	case f.Start != "":
		return runSimple(ctl.Start(f.Start), stderr)
	case f.Restart != "":
		return runSimple(ctl.Restart(f.Restart), stderr)
	case f.Delete != "":
		return runSimple(ctl.Delete(f.Delete), stderr)
	case f.ShutdownAll:
		return runSimple(ctl.ShutdownAll(), stderr)
	default:
		printUsage(stderr)
		return 0
	}
}

func runSimple(err error, stderr io.Writer) int {
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runList(ctl *control.Controller, format string, stdout io.Writer) int {
	entries, err := ctl.List()
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}
	if format == "json" {
		printJSON(entries, stdout)
		return 0
	}
	printHuman(entries, stdout)
	return 0
}

type jsonEntry struct {
	Name     string `json:"name"`
	PID      int    `json:"pid"`
	RunCount uint32 `json:"runcount"`
	Since    string `json:"since"`
	State    string `json:"state"`
	Exec     string `json:"exec"`
}

func printJSON(entries []control.Entry, stdout io.Writer) {
	out := make([]jsonEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, jsonEntry{
			Name:     e.Name,
			PID:      e.PID,
			RunCount: e.RunCount,
			Since:    since.Format(e.Since),
			State:    e.State,
			Exec:     e.Exec,
		})
	}
	b, _ := json.Marshal(out)
	fmt.Fprintln(stdout, string(b))
}

func printHuman(entries []control.Entry, stdout io.Writer) {
	for _, e := range entries {
		fmt.Fprintf(stdout, "%s %d %d %s %s %s\n",
			e.Name, e.PID, e.RunCount, since.Format(e.Since), e.State, e.Exec)
	}
}

func printUsage(stderr io.Writer) {
	fmt.Fprintln(stderr, `usage: procguard [-f path|-F path] [-l] [-o format] [-k id] [-s id] [-r id] [-d id] [-x] [-v] [-h]

  -f path   start daemon in backup role from config
  -F path   start daemon in primary role from config
  -l        list monitored processes (human)
  -o format list monitored processes; "json" selects JSON
  -k id     kill (suspend monitoring)
  -s id     start (resume monitoring)
  -r id     restart
  -d id     delete monitoring
  -x        shutdown all
  -v        verbose logging
  -h        this message`)
}

// runDaemon brings up one half of the self-supervisor pair and, if this
// process is primary, loads the configuration and drives the scheduler.
// It blocks until terminated by a signal.
func runDaemon(f Flags, role selfpair.Role, configPath string, store *lockfile.Store) int {
	log := logger.New(logger.Config{Path: "/var/log/procguard.log", Verbose: f.Verbose})

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "err", err)
	}
	go serveMetrics(metricsAddr, log)

	pair := &selfpair.Pair{Role: role, ConfigPath: configPath, Store: store, Log: log}
	if err := pair.Start(); err != nil {
		log.Error("self-supervisor startup failed", "err", err)
		return 1
	}
	defer pair.Stop()

	if role == selfpair.Primary {
		if err := bringUpConfiguration(configPath, store, log); err != nil {
			log.Error("bring-up failed", "err", err)
			return 1
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	s := <-sig
	log.Error("terminating on signal", "signal", s)
	return 1
}

// metricsAddr is intentionally bound to loopback only: the control
// channel relies on filesystem permissions, not authentication, and a
// metrics listener is no different.
const metricsAddr = "127.0.0.1:9877"

func serveMetrics(addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics listener exited", "addr", addr, "err", err)
	}
}

func bringUpConfiguration(configPath string, store *lockfile.Store, log *slog.Logger) error {
	specs, globalEnv, err := config.Load(configPath)
	if err != nil {
		return err
	}
	g, err := record.Build(specs)
	if err != nil {
		return err
	}
	mgr := worker.NewManager(store, log, globalEnv)
	scheduler.Run(g, mgr, log)
	return nil
}
