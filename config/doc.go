/*
Package config provides flowgate's configuration management.

# Overview

Config is assembled once at process startup: defaults -> YAML file ->
environment variables, then validated. There is no runtime hot-reload —
per the "global settings singleton -> construction-time config" design
note, the resulting *Config is threaded explicitly into the HTTP server
and the worker pool rather than read from a mutable global.

# Core types

  - Config: top-level aggregate — Server, Redis, Log, Telemetry,
    Pipeline, Sources, CRM, LLM, Notifier, Enrichment.
  - Loader: builder that merges default values, an optional YAML file,
    and FLOWGATE_-prefixed environment variables, then runs validators.

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		Load()
	if err != nil {
		os.Exit(1)
	}
*/
package config
