package bls

import (
	"fmt"
	"sync"
)

// PossessionVerifiedKey is a public key whose proof of possession has been
// checked. The zero value is not usable; values come only from
// VerifyPossession or a PossessionRegistry.
type PossessionVerifiedKey struct {
	pk PublicKey
}

// PublicKey returns the verified key.
func (k PossessionVerifiedKey) PublicKey() PublicKey { return k.pk }

// VerifyPossession checks that pop is the owner's signature over pk under the
// proof-of-possession tag.
func VerifyPossession(pk PublicKey, pop Signature) (PossessionVerifiedKey, error) {
	if !pk.valid() {
		return PossessionVerifiedKey{}, fmt.Errorf("%w: not a valid subgroup point", ErrMalformedPublicKey)
	}
	if !verifyWithDST(pk.p, pk.Bytes(), pop, popDST) {
		return PossessionVerifiedKey{}, ErrPossessionInvalid
	}
	return PossessionVerifiedKey{pk: pk}, nil
}

// PossessionRegistry records public keys with accepted proofs of possession.
// It is safe for concurrent use.
type PossessionRegistry struct {
	mu    sync.RWMutex
	keys  map[[PublicKeySize]byte]PossessionVerifiedKey
	limit int
}

// NewPossessionRegistry returns an unbounded registry.
func NewPossessionRegistry() *PossessionRegistry {
	return NewBoundedPossessionRegistry(0)
}

// NewBoundedPossessionRegistry returns a registry whose Register refuses new
// keys once limit keys are held. A limit <= 0 means unbounded.
func NewBoundedPossessionRegistry(limit int) *PossessionRegistry {
	return &PossessionRegistry{keys: make(map[[PublicKeySize]byte]PossessionVerifiedKey), limit: limit}
}

// Register verifies pop and records pk. Registering the same key twice is a
// no-op and never counts against the limit.
func (r *PossessionRegistry) Register(pk PublicKey, pop Signature) (PossessionVerifiedKey, error) {
	vk, err := VerifyPossession(pk, pop)
	if err != nil {
		return PossessionVerifiedKey{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := vk.pk.key()
	if _, ok := r.keys[k]; !ok && r.limit > 0 && len(r.keys) >= r.limit {
		return PossessionVerifiedKey{}, fmt.Errorf("%w: %d keys", ErrRegistryFull, r.limit)
	}
	r.keys[k] = vk
	return vk, nil
}

// Add records an already verified key. It bypasses the limit and is meant
// for keys the operator trusts.
func (r *PossessionRegistry) Add(vk PossessionVerifiedKey) {
	if !vk.pk.valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[vk.pk.key()] = vk
}

// Lookup returns the verified form of pk if it was registered.
func (r *PossessionRegistry) Lookup(pk PublicKey) (PossessionVerifiedKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vk, ok := r.keys[pk.key()]
	return vk, ok
}

// Resolve maps every key to its verified form, failing on the first key
// without an accepted proof of possession.
func (r *PossessionRegistry) Resolve(pks []PublicKey) ([]PossessionVerifiedKey, error) {
	out := make([]PossessionVerifiedKey, 0, len(pks))
	for i, pk := range pks {
		vk, ok := r.Lookup(pk)
		if !ok {
			return nil, fmt.Errorf("%w: key %d (%s)", ErrPossessionUnproven, i, pk.Hex())
		}
		out = append(out, vk)
	}
	return out, nil
}

func (r *PossessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
