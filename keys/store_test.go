package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"echorank.dev/attest/bls"
)

var testParams = KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}

func testStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Directory: t.TempDir(), Params: testParams}
}

func testSecret(t *testing.T) *bls.SecretKey {
	t.Helper()
	sk, err := bls.ParseSecretKey("0x1234abcd")
	if err != nil {
		t.Fatalf("ParseSecretKey: %v", err)
	}
	return sk
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ks := testStore(t)
	sk := testSecret(t)

	path, err := ks.Save("validator-1", sk, []byte("correct horse"), false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "validator-1.key.json" {
		t.Fatalf("unexpected path %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	got, err := ks.Load("validator-1", []byte("correct horse"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.PublicKey().Equal(sk.PublicKey()) {
		t.Fatalf("loaded key differs")
	}

	pk, err := ks.PublicKey("validator-1")
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if !pk.Equal(sk.PublicKey()) {
		t.Fatalf("stored public key differs")
	}
}

func TestStore_WrongPassphrase(t *testing.T) {
	ks := testStore(t)
	if _, err := ks.Save("k", testSecret(t), []byte("one"), false); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := ks.Load("k", []byte("two")); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}
	if _, err := ks.Load("k", nil); !errors.Is(err, ErrEmptyPassphrase) {
		t.Fatalf("expected ErrEmptyPassphrase, got %v", err)
	}
}

func TestStore_RefusesOverwriteUnlessAsked(t *testing.T) {
	ks := testStore(t)
	if _, err := ks.Save("k", testSecret(t), []byte("p"), false); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := ks.Save("k", testSecret(t), []byte("p"), false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	other, err := bls.ParseSecretKey("99")
	if err != nil {
		t.Fatalf("ParseSecretKey: %v", err)
	}
	if _, err := ks.Save("k", other, []byte("p"), true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := ks.Load("k", []byte("p"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.PublicKey().Equal(other.PublicKey()) {
		t.Fatalf("overwrite did not replace the key")
	}
}

func TestStore_TamperedPublicKeyFailsToOpen(t *testing.T) {
	ks := testStore(t)
	path, err := ks.Save("k", testSecret(t), []byte("p"), false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	kf, err := readKeyFile(path)
	if err != nil {
		t.Fatalf("readKeyFile: %v", err)
	}
	other, _ := bls.ParseSecretKey("7")
	kf.PublicKey = other.PublicKey().Hex()
	if _, err := open(kf, []byte("p")); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
}

func TestStore_ListAndMissing(t *testing.T) {
	ks := testStore(t)
	entries, err := ks.List()
	if err != nil || len(entries) != 0 {
		t.Fatalf("empty store: %v %v", entries, err)
	}
	for _, name := range []string{"b", "a"} {
		if _, err := ks.Save(name, testSecret(t), []byte("p"), false); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(ks.Directory, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err = ks.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "a" || entries[1].Name != "b" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if _, err := ks.Load("missing", []byte("p")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckKeyName(t *testing.T) {
	for _, ok := range []string{"a", "validator_1", "K-2"} {
		if err := CheckKeyName(ok); err != nil {
			t.Fatalf("CheckKeyName(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "../x", "a b", "é"} {
		if err := CheckKeyName(bad); err == nil {
			t.Fatalf("CheckKeyName(%q): expected error", bad)
		}
	}
}

func TestReadSecretKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sk")
	if err := os.WriteFile(path, []byte("12345\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sk, err := ReadSecretKeyFile(path)
	if err != nil {
		t.Fatalf("ReadSecretKeyFile: %v", err)
	}
	want, _ := bls.ParseSecretKey("12345")
	if !sk.PublicKey().Equal(want.PublicKey()) {
		t.Fatalf("unexpected key")
	}
}
