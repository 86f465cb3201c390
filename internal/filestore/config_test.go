package filestore

import (
	"testing"

	"github.com/koustreak/relgen/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig("localhost:9000", "minioadmin", "minioadmin").Validate())

	tests := map[string]func(*Config){
		"provider": func(c *Config) { c.Provider = "gcs" },
		"endpoint": func(c *Config) { c.Endpoint = " " },
		"scheme":   func(c *Config) { c.Endpoint = "http://localhost:9000" },
		"bucket":   func(c *Config) { c.Bucket = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig("localhost:9000", "k", "s")
			mutate(cfg)
			assert.True(t, errs.IsInvalidArgument(cfg.Validate()))
		})
	}

	var nilCfg *Config
	assert.True(t, errs.IsInvalidArgument(nilCfg.Validate()))
}
