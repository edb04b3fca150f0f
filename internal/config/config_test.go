package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, _ := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis", cfg.Snapshot.Driver)
	assert.Equal(t, "portal-akron", cfg.Snapshot.Prefix)
	assert.Equal(t, "localhost:6379", cfg.Snapshot.Redis.Addr)
	assert.Equal(t, "fs", cfg.Blob.Driver)
	assert.False(t, cfg.Push.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SNAPSHOT_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/portal?sslmode=disable")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("BLOB_DRIVER", "s3")
	t.Setenv("BLOB_S3_BUCKET", "attachments")
	t.Setenv("BLOB_S3_PATH_STYLE", "TRUE")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")

	cfg, _ := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.Snapshot.Redis.DB)
	assert.True(t, cfg.Blob.S3.PathStyle)
	assert.True(t, cfg.Push.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown snapshot driver", func(c *Config) { c.Snapshot.Driver = "etcd" }},
		{"postgres without url", func(c *Config) { c.Snapshot.Driver = "postgres"; c.Snapshot.PostgreURL = "" }},
		{"unknown blob driver", func(c *Config) { c.Blob.Driver = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Blob.Driver = "s3"; c.Blob.S3.Bucket = "" }},
		{"empty prefix", func(c *Config) { c.Snapshot.Prefix = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
