// Package config loads the JSON configuration document into the
// statically-typed record.Spec array the rest of the daemon consumes.
// There is no dynamic dispatch over the JSON tree: viper decodes the
// document and mapstructure fills the typed slice directly.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/kyleterry/procguard/internal/env"
	"github.com/kyleterry/procguard/internal/record"
)

// Document is the top-level shape of the configuration file. Env holds
// KEY=VALUE-style global overrides layered under every process's own
// per-process env (record.Spec.Env); it is a supplemental extension
// alongside that field, and spec.md is equally silent on it.
type Document struct {
	Processes []record.Spec     `mapstructure:"processes"`
	Env       map[string]string `mapstructure:"env"`
}

// Load reads and decodes the JSON configuration at path. Unknown
// top-level or per-process attributes are ignored rather than
// rejected, matching the external interface contract. "wait" and
// "restart_delay" accept either a JSON number or a numeric string,
// handled by enabling weakly-typed input on the decoder. The returned
// *env.Env wraps the document's top-level "env" globals, if any, over a
// snapshot of the daemon's own OS environment.
func Load(path string) ([]record.Spec, *env.Env, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := validate(doc.Processes); err != nil {
		return nil, nil, err
	}

	// Viper lower-cases every key it reads, but environment variable
	// names are case-sensitive, so the "env" map is taken from the raw
	// document when it decodes as plain strings.
	if raw, err := os.ReadFile(path); err == nil {
		var top struct {
			Env map[string]string `json:"env"`
		}
		if json.Unmarshal(raw, &top) == nil && top.Env != nil {
			doc.Env = top.Env
		}
	}
	return doc.Processes, buildEnv(doc.Env), nil
}

// buildEnv layers the document's global overrides onto a fresh Env one
// key at a time: WithSet for a non-empty value, WithUnset for an empty
// one. WithUnset only drops a global override, so a key mapped to ""
// keeps whatever value the daemon's own OS environment gives it. An
// empty or absent "env" key yields a bare OS-environment Env.
func buildEnv(globals map[string]string) *env.Env {
	e := env.New()
	for k, v := range globals {
		if v == "" {
			e = e.WithUnset(k)
			continue
		}
		e = e.WithSet(k, v)
	}
	return e
}

func validate(specs []record.Spec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.ID == "" {
			return fmt.Errorf("config: process with empty id")
		}
		if s.Exec == "" {
			return fmt.Errorf("config: process %q has no exec", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate process id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
