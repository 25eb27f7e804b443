package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestRunRejectsBadFlags(t *testing.T) {
	var errOut bytes.Buffer
	if code := run(context.Background(), []string{"-nope"}, envOf(nil), &errOut); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunFailsWithoutSigner(t *testing.T) {
	var errOut bytes.Buffer
	env := envOf(map[string]string{"ECHORANK_LOG_LEVEL": "error"})
	if code := run(context.Background(), []string{"-check"}, env, &errOut); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRunFailsOnInvalidSecret(t *testing.T) {
	var errOut bytes.Buffer
	env := envOf(map[string]string{"ECHORANK_SECRET_KEY": "0", "ECHORANK_LOG_LEVEL": "error"})
	if code := run(context.Background(), []string{"-check"}, env, &errOut); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRunCheckWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attestd.yaml")
	yaml := "algo_version: SenseVoice-v1.1\n" +
		"signer:\n  secret_key: \"123456789\"\n" +
		"log:\n  level: error\n" +
		"archive:\n  backend: localfs\n  dir: " + filepath.Join(dir, "archive") + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	var errOut bytes.Buffer
	if code := run(context.Background(), []string{"-config", path, "-check"}, envOf(nil), &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut.String())
	}
}

func TestRunUnknownConfigKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("sigenr: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var errOut bytes.Buffer
	if code := run(context.Background(), []string{"-config", path}, envOf(nil), &errOut); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}
