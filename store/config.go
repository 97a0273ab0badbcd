package store

import "github.com/larkspur/quadstore/atom"

// Config controls the on-disk geometry and instrumentation of a Store.
type Config struct {
	// Atoms configures the underlying atom store.
	Atoms atom.Config `yaml:"atoms"`
	// MetricsNamespace prefixes every Prometheus metric this Store
	// registers. Defaults to "quadstore" when empty.
	MetricsNamespace string `yaml:"metrics-namespace"`
}

func (c Config) withDefaults() Config {
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "quadstore"
	}
	return c
}
