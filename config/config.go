// Package config loads the attestation daemon configuration from YAML with
// environment overrides. Every field is optional.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvSecretKey       = "ECHORANK_SECRET_KEY"
	EnvLegacySecretKey = "VALIDATOR_1_SK"
	EnvLogLevel        = "ECHORANK_LOG_LEVEL"
	EnvHTTPAddress     = "ECHORANK_HTTP_ADDRESS"
	EnvAMQPURL         = "ECHORANK_AMQP_URL"
)

// Archive backends.
const (
	ArchiveNone    = "none"
	ArchiveLocalFS = "localfs"
	ArchiveRedis   = "redis"
)

type Config struct {
	// AlgoVersion names the analyzer version bound into signed messages.
	AlgoVersion string  `yaml:"algo_version"`
	Signer      Signer  `yaml:"signer"`
	Server      Server  `yaml:"server"`
	Log         Log     `yaml:"log"`
	Archive     Archive `yaml:"archive"`
	Publish     Publish `yaml:"publish"`
}

// Signer selects the signing key. The first non-empty source wins:
// SecretKey, SecretKeyFile, then Keystore.
type Signer struct {
	SecretKey     string   `yaml:"secret_key"`
	SecretKeyFile string   `yaml:"secret_key_file"`
	Keystore      Keystore `yaml:"keystore"`
}

type Keystore struct {
	Path string `yaml:"path"`
	// Name selects the key inside the store directory Path.
	Name          string `yaml:"name"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

type Server struct {
	HTTPAddress     string        `yaml:"http_address"`
	GRPCAddress     string        `yaml:"grpc_address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxUploadBytes bounds the raw content accepted by the attest endpoint.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// MaxRegisteredKeys caps co-signer keys accepted through the key
	// registration endpoints. Negative means unbounded.
	MaxRegisteredKeys int `yaml:"max_registered_keys"`
}

type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type Archive struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type Publish struct {
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Signer: Signer{
			Keystore: Keystore{PassphraseEnv: "ECHORANK_KEY_PASSPHRASE"},
		},
		Server: Server{
			HTTPAddress:       ":8001",
			GRPCAddress:       "127.0.0.1:7777",
			ShutdownTimeout:   10 * time.Second,
			MaxUploadBytes:    32 << 20,
			MaxRegisteredKeys: 1024,
		},
		Log: Log{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Archive: Archive{
			Backend:     ArchiveNone,
			RedisPrefix: "echorank:att:",
		},
		Publish: Publish{
			Queue: "echorank.attestations",
		},
	}
}

// Load reads path (when non-empty), applies environment overrides from the
// process environment and validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvSecretKey)); v != "" {
		c.Signer = Signer{SecretKey: v, Keystore: Keystore{PassphraseEnv: c.Signer.Keystore.PassphraseEnv}}
	} else if v := strings.TrimSpace(getenv(EnvLegacySecretKey)); v != "" && !c.Signer.Configured() {
		c.Signer.SecretKey = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvHTTPAddress); v != "" {
		c.Server.HTTPAddress = v
	}
	if v := getenv(EnvAMQPURL); v != "" {
		c.Publish.AMQPURL = v
	}
}

// Configured reports whether any key source is set.
func (s Signer) Configured() bool {
	return s.SecretKey != "" || s.SecretKeyFile != "" || s.Keystore.Name != ""
}

// Validate checks enumerations and required companions.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q must be json or console", c.Log.Format)
	}
	switch c.Archive.Backend {
	case "", ArchiveNone:
	case ArchiveLocalFS:
		if c.Archive.Dir == "" {
			return errors.New("config: archive.dir is required for the localfs backend")
		}
	case ArchiveRedis:
		if c.Archive.RedisAddr == "" {
			return errors.New("config: archive.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown archive.backend %q", c.Archive.Backend)
	}
	if c.Publish.AMQPURL != "" && c.Publish.Queue == "" {
		return errors.New("config: publish.queue is required when publish.amqp_url is set")
	}
	if c.Server.HTTPAddress == "" && c.Server.GRPCAddress == "" {
		return errors.New("config: at least one of server.http_address and server.grpc_address is required")
	}
	if c.Server.ShutdownTimeout < 0 || c.Server.MaxUploadBytes < 0 {
		return errors.New("config: server timeouts and limits must not be negative")
	}
	if c.Signer.Keystore.Name != "" && c.Signer.Keystore.PassphraseEnv == "" {
		return errors.New("config: signer.keystore.passphrase_env is required with signer.keystore.name")
	}
	return nil
}
