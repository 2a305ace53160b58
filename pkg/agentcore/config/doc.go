/*
Package config provides type-safe configuration extraction for agentcore.

# Overview

Config wraps a map[string]any (usually decoded from YAML or JSON) and
provides typed accessors that return a default when a key is missing or has
the wrong type. Keys may be dotted paths into nested sections:

	cfg, err := config.FromFile("agentcore.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	interval := cfg.Duration("scheduler.interval", time.Second)
	batch := cfg.Int("loader.batch_size", 10)

# Durations

Duration accepts Go duration strings ("250ms", "1m30s"), time.Duration
values, and bare numbers, which are read as milliseconds to match the
millisecond intervals used throughout the runtime.

# Settings

LoadSettings turns a Config into the Settings struct consumed by
agentcore.New. Environment variables prefixed with AGENTCORE_ override file
values via Settings.ApplyEnv:

	settings := config.LoadSettings(cfg).ApplyEnv(nil).Normalize()

LoadSettingsFile does all three steps for a config file, and treats a missing
file as empty. Config files may reference environment variables as ${VAR}.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
