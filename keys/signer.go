package keys

import (
	"errors"
	"fmt"

	"echorank.dev/attest/bls"
	"echorank.dev/attest/config"
)

// ErrNoSigner reports a configuration without any key source.
var ErrNoSigner = errors.New("keys: no signing key configured")

// LoadSigner resolves the signing key named by s. Passphrases are read
// through getenv, never from the configuration file.
func LoadSigner(s config.Signer, getenv func(string) string) (*bls.SecretKey, error) {
	switch {
	case s.SecretKey != "":
		sk, err := bls.ParseSecretKey(s.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("keys: signer.secret_key: %w", err)
		}
		return sk, nil
	case s.SecretKeyFile != "":
		sk, err := ReadSecretKeyFile(s.SecretKeyFile)
		if err != nil {
			return nil, fmt.Errorf("keys: signer.secret_key_file: %w", err)
		}
		return sk, nil
	case s.Keystore.Name != "":
		ks, err := OpenStore(s.Keystore.Path)
		if err != nil {
			return nil, err
		}
		pass := getenv(s.Keystore.PassphraseEnv)
		if pass == "" {
			return nil, fmt.Errorf("%w: %s is not set", ErrEmptyPassphrase, s.Keystore.PassphraseEnv)
		}
		return ks.Load(s.Keystore.Name, []byte(pass))
	default:
		return nil, ErrNoSigner
	}
}
