package keys

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"echorank.dev/attest/bls"
)

const (
	fileVersion = 1
	fileSuffix  = ".key.json"
	kdfName     = "argon2id"
	cipherName  = "xchacha20poly1305"
	saltSize    = 16
)

var (
	ErrNotFound        = errors.New("keys: key not found")
	ErrExists          = errors.New("keys: key already exists")
	ErrWrongPassphrase = errors.New("keys: wrong passphrase or corrupted key file")
	ErrEmptyPassphrase = errors.New("keys: passphrase is empty")
)

// KDFParams are the Argon2id cost parameters used when sealing a key.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams follow the RFC 9106 second recommended option.
var DefaultKDFParams = KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}

// Store is a directory of sealed signing keys, one file per key:
//
//	<dir>/<name>.key.json
type Store struct {
	Directory string
	Params    KDFParams
	Rand      io.Reader
}

// Entry describes a stored key without unsealing it.
type Entry struct {
	Name      string
	PublicKey bls.PublicKey
	Path      string
}

type keyFile struct {
	Version   int       `json:"version"`
	Algorithm string    `json:"algorithm"`
	PublicKey string    `json:"public_key"`
	KDF       kdfBlock  `json:"kdf"`
	Cipher    sealBlock `json:"cipher"`
}

type kdfBlock struct {
	Name string `json:"name"`
	Salt string `json:"salt"`
	KDFParams
}

type sealBlock struct {
	Name       string `json:"name"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// DefaultDirectory returns ~/.echorank/keys.
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".echorank", "keys"), nil
}

// OpenStore returns a store rooted at directory, or at DefaultDirectory
// when directory is empty. The directory is created on first Save.
func OpenStore(directory string) (*Store, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &Store{Directory: directory, Params: DefaultKDFParams}, nil
}

// CheckKeyName accepts ASCII letters, digits, '-' and '_'.
func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("keys: name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("keys: invalid character %q in name", char)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Directory, name+fileSuffix)
}

func (s *Store) rand() io.Reader {
	if s.Rand != nil {
		return s.Rand
	}
	return rand.Reader
}

func (s *Store) params() KDFParams {
	if s.Params.Time == 0 || s.Params.MemoryKiB == 0 || s.Params.Threads == 0 {
		return DefaultKDFParams
	}
	return s.Params
}

// Save seals sk under passphrase and writes it as name.
func (s *Store) Save(name string, sk *bls.SecretKey, passphrase []byte, overwrite bool) (string, error) {
	if err := CheckKeyName(name); err != nil {
		return "", err
	}
	if len(passphrase) == 0 {
		return "", ErrEmptyPassphrase
	}
	pub := sk.PublicKey()
	if _, err := sk.ProvePossession(); err != nil {
		return "", fmt.Errorf("keys: refusing to store unusable key: %w", err)
	}

	kf, err := seal(sk, pub, passphrase, s.params(), s.rand())
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return "", err
	}

	filePath := s.path(name)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return "", err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, name)
		}
		return "", err
	}
	defer file.Close()
	if _, err := file.Write(append(data, '\n')); err != nil {
		return "", err
	}
	return filePath, file.Close()
}

// Load unseals the key stored as name.
func (s *Store) Load(name string, passphrase []byte) (*bls.SecretKey, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	return LoadFile(s.path(name), passphrase)
}

// PublicKey returns the public key of name without the passphrase.
func (s *Store) PublicKey(name string) (bls.PublicKey, error) {
	if err := CheckKeyName(name); err != nil {
		return bls.PublicKey{}, err
	}
	kf, err := readKeyFile(s.path(name))
	if err != nil {
		return bls.PublicKey{}, err
	}
	return bls.ParsePublicKeyHex(kf.PublicKey)
}

// List returns the stored keys sorted by name. Unreadable files are skipped.
func (s *Store) List() ([]Entry, error) {
	entries, err := os.ReadDir(s.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), fileSuffix))
	}
	sort.Strings(names)

	var result []Entry
	for _, name := range names {
		pk, err := s.PublicKey(name)
		if err != nil {
			continue
		}
		result = append(result, Entry{Name: name, PublicKey: pk, Path: s.path(name)})
	}
	return result, nil
}

// LoadFile unseals a key file at an explicit path.
func LoadFile(path string, passphrase []byte) (*bls.SecretKey, error) {
	kf, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	return open(kf, passphrase)
}

// ReadSecretKeyFile reads a file holding one secret key in the textual form
// accepted by bls.ParseSecretKey.
func ReadSecretKeyFile(path string) (*bls.SecretKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer clear(data)
	return bls.ParseSecretKey(string(data))
}

func readKeyFile(path string) (*keyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("keys: decode %s: %w", path, err)
	}
	if kf.Version != fileVersion {
		return nil, fmt.Errorf("keys: %s: unsupported version %d", path, kf.Version)
	}
	if kf.Algorithm != bls.Algorithm || kf.KDF.Name != kdfName || kf.Cipher.Name != cipherName {
		return nil, fmt.Errorf("keys: %s: unsupported algorithm set", path)
	}
	if p := kf.KDF.KDFParams; p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		return nil, fmt.Errorf("keys: %s: invalid kdf parameters", path)
	}
	return &kf, nil
}

func deriveKey(passphrase, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, chacha20poly1305.KeySize)
}

func seal(sk *bls.SecretKey, pub bls.PublicKey, passphrase []byte, p KDFParams, r io.Reader) (*keyFile, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, fmt.Errorf("keys: read salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("keys: read nonce: %w", err)
	}
	key := deriveKey(passphrase, salt, p)
	defer clear(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plain := sk.Bytes()
	defer clear(plain)
	ct := aead.Seal(nil, nonce, plain, pub.Bytes())

	return &keyFile{
		Version:   fileVersion,
		Algorithm: bls.Algorithm,
		PublicKey: pub.Hex(),
		KDF:       kdfBlock{Name: kdfName, Salt: hex.EncodeToString(salt), KDFParams: p},
		Cipher:    sealBlock{Name: cipherName, Nonce: hex.EncodeToString(nonce), Ciphertext: hex.EncodeToString(ct)},
	}, nil
}

func open(kf *keyFile, passphrase []byte) (*bls.SecretKey, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	pub, err := bls.ParsePublicKeyHex(kf.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("keys: stored public key: %w", err)
	}
	salt, err := hex.DecodeString(kf.KDF.Salt)
	if err != nil {
		return nil, fmt.Errorf("keys: salt: %w", err)
	}
	nonce, err := hex.DecodeString(kf.Cipher.Nonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, errors.New("keys: invalid nonce")
	}
	ct, err := hex.DecodeString(kf.Cipher.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("keys: ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt, kf.KDF.KDFParams)
	defer clear(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, ct, pub.Bytes())
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	defer clear(plain)
	sk, err := bls.SecretKeyFromBytes(plain)
	if err != nil {
		return nil, err
	}
	if !sk.PublicKey().Equal(pub) {
		return nil, ErrWrongPassphrase
	}
	return sk, nil
}
