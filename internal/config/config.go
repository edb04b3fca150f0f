package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Log      LogConfig
	Catalog  string
	Snapshot SnapshotConfig
	Blob     BlobConfig
	Session  SessionConfig
	Push     PushConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type SnapshotConfig struct {
	Driver     string // redis, postgres, sqlite or memory
	Prefix     string
	Redis      RedisConfig
	PostgreURL string
	SQLitePath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BlobConfig struct {
	Driver string // fs, memory or s3
	FSRoot string
	S3     S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

type SessionConfig struct {
	Secret string
	Secure bool
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// Load reads .env (if present) and the process environment.
// The returned bool is false when no .env file was found.
func Load() (*Config, bool) {
	foundEnv := godotenv.Load() == nil

	cfg := &Config{
		Port:    "8080",
		Catalog: os.Getenv("CATALOG_PATH"),
		Log:     LogConfig{Level: "info", Format: "json"},
		Snapshot: SnapshotConfig{
			Driver:     "redis",
			Prefix:     "portal-akron",
			Redis:      RedisConfig{Addr: "localhost:6379"},
			SQLitePath: "portal.db",
		},
		Blob:    BlobConfig{Driver: "fs", FSRoot: "./blobdata", S3: S3Config{Region: "us-east-1"}},
		Session: SessionConfig{Secret: "secret-key-change-in-production"},
		Push:    PushConfig{Subscriber: "mailto:admin@example.com"},
	}
	setString(&cfg.Port, "PORT")
	cfg.Log.LoadFromEnv("LOG")
	cfg.Snapshot.LoadFromEnv()
	cfg.Blob.LoadFromEnv("BLOB")
	cfg.Session.LoadFromEnv("SESSION")
	cfg.Push.LoadFromEnv("VAPID")
	return cfg, foundEnv
}

func (c *LogConfig) LoadFromEnv(prefix string) {
	setString(&c.Level, prefix+"_LEVEL")
	setString(&c.Format, prefix+"_FORMAT")
}

func (c *SnapshotConfig) LoadFromEnv() {
	setString(&c.Driver, "SNAPSHOT_DRIVER")
	setString(&c.Prefix, "SNAPSHOT_PREFIX")
	c.Redis.LoadFromEnv("REDIS")
	setString(&c.PostgreURL, "DATABASE_URL")
	setString(&c.SQLitePath, "SQLITE_PATH")
}

func (c *RedisConfig) LoadFromEnv(prefix string) {
	setString(&c.Addr, prefix+"_ADDR")
	setString(&c.Password, prefix+"_PASSWORD")
	if db := os.Getenv(prefix + "_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.DB = n
		}
	}
}

func (c *BlobConfig) LoadFromEnv(prefix string) {
	setString(&c.Driver, prefix+"_DRIVER")
	setString(&c.FSRoot, prefix+"_FS_ROOT")
	setString(&c.S3.Bucket, prefix+"_S3_BUCKET")
	setString(&c.S3.Region, prefix+"_S3_REGION")
	setString(&c.S3.Endpoint, prefix+"_S3_ENDPOINT")
	setString(&c.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	c.S3.PathStyle = strings.EqualFold(os.Getenv(prefix+"_S3_PATH_STYLE"), "true")
}

func (c *SessionConfig) LoadFromEnv(prefix string) {
	setString(&c.Secret, prefix+"_SECRET")
	c.Secure = strings.EqualFold(os.Getenv(prefix+"_SECURE"), "true")
}

func (c *PushConfig) LoadFromEnv(prefix string) {
	setString(&c.VAPIDPublicKey, prefix+"_PUBLIC_KEY")
	setString(&c.VAPIDPrivateKey, prefix+"_PRIVATE_KEY")
	setString(&c.Subscriber, prefix+"_SUBSCRIBER")
}

// Validate rejects unknown drivers and missing driver settings.
func (c *Config) Validate() error {
	switch c.Snapshot.Driver {
	case "redis", "memory":
	case "postgres":
		if c.Snapshot.PostgreURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for the postgres snapshot driver")
		}
	case "sqlite":
		if c.Snapshot.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite snapshot driver")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_DRIVER %q", c.Snapshot.Driver)
	}

	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown BLOB_DRIVER %q", c.Blob.Driver)
	}

	if c.Snapshot.Prefix == "" {
		return fmt.Errorf("SNAPSHOT_PREFIX must not be empty")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
