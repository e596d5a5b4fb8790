package main

// Flags mirrors the external getopt-style CLI surface as a plain struct,
// decoupled from cobra so the dispatch logic below is testable without
// going through flag parsing at all.
type Flags struct {
	BackupConfigPath  string // -f path: start as backup from config
	PrimaryConfigPath string // -F path: start as primary from config
	List              bool   // -l: list monitored processes (human)
	ListFormat        string // -o format: list; "json" selects JSON
	Kill              string // -k id: suspend monitoring
	Start             string // -s id: resume monitoring
	Restart           string // -r id: restart
	Delete            string // -d id: delete monitoring
	ShutdownAll       bool   // -x: shutdown all
	Verbose           bool   // -v: verbose logging
}
