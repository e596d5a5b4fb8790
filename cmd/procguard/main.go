// Command procguard is the process supervisor daemon and its own
// control-plane client: the same binary started with -F/-f runs as the
// long-lived supervisor, while -l/-k/-s/-r/-d/-x invoke short-lived
// control operations against the lockfiles a running supervisor leaves
// behind.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kyleterry/procguard/internal/lockfile"
)

func main() {
	f := Flags{}

	root := &cobra.Command{
		Use:           "procguard",
		Short:         "Process supervisor daemon and control-plane client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := lockfile.NewStore(lockfile.DefaultDir)
			code := run(f, store, os.Stdout, os.Stderr)
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	root.SetHelpFunc(func(*cobra.Command, []string) { printUsage(os.Stderr) })

	flags := root.Flags()
	flags.StringVarP(&f.BackupConfigPath, "backup", "f", "", "start daemon in backup role from config")
	flags.StringVarP(&f.PrimaryConfigPath, "primary", "F", "", "start daemon in primary role from config")
	flags.BoolVarP(&f.List, "list", "l", false, "list monitored processes")
	flags.StringVarP(&f.ListFormat, "output", "o", "", "list output format (json)")
	flags.StringVarP(&f.Kill, "kill", "k", "", "kill (suspend monitoring) the named process")
	flags.StringVarP(&f.Start, "start", "s", "", "start (resume monitoring) the named process")
	flags.StringVarP(&f.Restart, "restart", "r", "", "restart the named process")
	flags.StringVarP(&f.Delete, "delete", "d", "", "delete monitoring for the named process")
	flags.BoolVarP(&f.ShutdownAll, "shutdown-all", "x", false, "shut down every supervised process")
	flags.BoolVarP(&f.Verbose, "verbose", "v", false, "verbose logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
