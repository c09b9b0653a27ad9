// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package config loads and validates the deployment configuration from
// defaults, an optional YAML file, and command-line flags, in that order of
// precedence.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

// Config is the full deployment configuration.
type Config struct {
	Database Database `koanf:"database"`
	Log      Log      `koanf:"log"`
	Policy   Policy   `koanf:"policy"`
	Requests Requests `koanf:"requests"`
	Reindex  Reindex  `koanf:"reindex"`
}

// Database holds connection settings.
type Database struct {
	URL string `koanf:"url"`
}

// Log holds logging settings.
type Log struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Policy holds the policy-mode switches, chosen once at startup.
type Policy struct {
	// Mode is "leveled", "legacy-global", or "legacy-individual".
	Mode           string `koanf:"mode"`
	EnforceEmbargo bool   `koanf:"enforce_embargo"`
	FullAccess     bool   `koanf:"full_access"`
}

// Requests holds the access-request submission surface.
type Requests struct {
	// Modes lists accepted requester identities: user, email, token.
	Modes []string `koanf:"modes"`
	// FieldsSchema is an optional path to a JSON schema validating the
	// free-form request fields.
	FieldsSchema string `koanf:"fields_schema"`
}

// Reindex holds batch-job settings.
type Reindex struct {
	PageSize int `koanf:"page_size"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.format":             "text",
		"log.level":              "info",
		"policy.mode":            "leveled",
		"policy.enforce_embargo": true,
		"policy.full_access":     false,
		"requests.modes":         []string{"user", "email"},
		"reindex.page_size":      100,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty), and the given flag set (skipped when nil). The result is validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := accessctl.ParsePolicyMode(c.Policy.Mode); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log.format", c.Log.Format).
			Errorf("log format must be json or text")
	}
	if _, err := c.RequestModes(); err != nil {
		return err
	}
	if c.Reindex.PageSize <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("reindex.page_size", c.Reindex.PageSize).
			Errorf("reindex page size must be positive")
	}
	return nil
}

// PolicyMode returns the parsed policy mode.
func (c *Config) PolicyMode() accessctl.PolicyMode {
	mode, _ := accessctl.ParsePolicyMode(c.Policy.Mode)
	return mode
}

// RequestModes maps the configured mode names onto the submission switches.
func (c *Config) RequestModes() (accessctl.RequestModes, error) {
	var modes accessctl.RequestModes
	for _, m := range c.Requests.Modes {
		switch m {
		case "user":
			modes.User = true
		case "email":
			modes.Email = true
		case "token":
			modes.Token = true
		default:
			return accessctl.RequestModes{}, oops.Code("CONFIG_INVALID").
				With("requests.modes", m).
				Errorf("unrecognized request mode %q", m)
		}
	}
	return modes, nil
}

// EvaluatorConfig maps the policy section onto the evaluator's switches.
func (c *Config) EvaluatorConfig() accessctl.EvaluatorConfig {
	return accessctl.EvaluatorConfig{
		Mode:           c.PolicyMode(),
		EnforceEmbargo: c.Policy.EnforceEmbargo,
		FullAccess:     c.Policy.FullAccess,
	}
}
