package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
algo_version: SenseVoice-v1.1
server:
  http_address: ":9000"
  shutdown_timeout: 3s
archive:
  backend: localfs
  dir: /var/lib/echorank
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AlgoVersion != "SenseVoice-v1.1" || cfg.Server.HTTPAddress != ":9000" {
		t.Fatalf("unexpected %+v", cfg)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Fatalf("shutdown_timeout: got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.GRPCAddress != "127.0.0.1:7777" || cfg.Log.Level != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Archive.RedisPrefix != "echorank:att:" {
		t.Fatalf("archive defaults lost: %+v", cfg.Archive)
	}
	if cfg.Server.MaxRegisteredKeys != 1024 {
		t.Fatalf("max_registered_keys default: got %d", cfg.Server.MaxRegisteredKeys)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":    "signer:\n  secret: 1\n",
		"bad level":        "log:\n  level: loud\n",
		"bad format":       "log:\n  format: xml\n",
		"localfs no dir":   "archive:\n  backend: localfs\n",
		"redis no addr":    "archive:\n  backend: redis\n",
		"unknown backend":  "archive:\n  backend: s3\n",
		"publish no queue": "publish:\n  amqp_url: amqp://x\n  queue: \"\"\n",
		"no listeners":     "server:\n  http_address: \"\"\n  grpc_address: \"\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadWithEnv_SecretKeyPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attestd.yaml")
	if err := os.WriteFile(path, []byte("signer:\n  secret_key_file: /run/secrets/sk\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadWithEnv(path, env(map[string]string{EnvLegacySecretKey: "12345"}))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Signer.SecretKey != "" || cfg.Signer.SecretKeyFile != "/run/secrets/sk" {
		t.Fatalf("legacy variable must not override a configured source: %+v", cfg.Signer)
	}

	cfg, err = LoadWithEnv(path, env(map[string]string{EnvSecretKey: "0x2a"}))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Signer.SecretKey != "0x2a" || cfg.Signer.SecretKeyFile != "" {
		t.Fatalf("ECHORANK_SECRET_KEY must replace the configured source: %+v", cfg.Signer)
	}

	cfg, err = LoadWithEnv("", env(map[string]string{EnvLegacySecretKey: " 777 ", EnvLogLevel: "debug"}))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Signer.SecretKey != "777" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected %+v", cfg)
	}
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	if err == nil || !strings.Contains(err.Error(), "nope.yaml") {
		t.Fatalf("expected read error naming the file, got %v", err)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.HTTPAddress != ":8001" {
		t.Fatalf("unexpected %+v", cfg.Server)
	}
}
