// internal/workers/nlquery/schema-introspect/config.go
package schemaintrospect

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
