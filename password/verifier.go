package password

import (
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

// Verifier checks plaintext secrets against stored hashes. It understands
// argon2id PHC strings and the bcrypt variants ($2a$, $2b$, $2y$) found in
// legacy user tables, and hashes new secrets with argon2id.
//
// Verify never returns an error: an unreadable hash is simply a mismatch.
type Verifier struct {
	argon *Argon2

	// Formats seen by Verify; Decoy follows the majority.
	argonSeen  atomic.Uint64
	bcryptSeen atomic.Uint64
	bcryptCost atomic.Int32

	decoyOnce sync.Once
	decoy     string

	bcryptMu        sync.Mutex
	bcryptDecoy     []byte
	bcryptDecoyCost int
}

// Decoy formats reported by [Verifier.DecoyFormat].
const (
	FormatArgon2id = "argon2id"
	FormatBcrypt   = "bcrypt"
)

const decoySecret = "decoy-secret-never-matches"

// NewVerifier returns a Verifier that hashes with params.
func NewVerifier(params Argon2Params) (*Verifier, error) {
	a, err := NewArgon2(params)
	if err != nil {
		return nil, err
	}
	return &Verifier{argon: a}, nil
}

// Verify reports whether plain matches stored.
func (v *Verifier) Verify(plain, stored string) bool {
	switch {
	case strings.HasPrefix(stored, argon2Prefix):
		v.argonSeen.Add(1)
		ok, err := v.argon.Compare(plain, stored)
		return err == nil && ok
	case isBcrypt(stored):
		if cost, err := bcrypt.Cost([]byte(stored)); err == nil {
			v.bcryptSeen.Add(1)
			v.bcryptCost.Store(int32(cost))
		}
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	default:
		return false
	}
}

// Hash produces a new argon2id hash for plain.
func (v *Verifier) Hash(plain string) (string, error) {
	return v.argon.Hash(plain)
}

// NeedsUpgrade reports whether stored should be replaced by a fresh Hash on
// the next successful login. bcrypt hashes always qualify.
func (v *Verifier) NeedsUpgrade(stored string) bool {
	if isBcrypt(stored) {
		return true
	}
	return v.argon.Weaker(stored)
}

// Decoy runs one verification against a fixed hash so that a lookup miss
// costs about as much as a wrong secret. The decoy uses whichever format
// Verify has seen most, at the last observed bcrypt cost, so a table of
// unmigrated bcrypt rows does not make misses cheaper than mismatches.
func (v *Verifier) Decoy(plain string) {
	if v.DecoyFormat() == FormatBcrypt {
		if h := v.bcryptDecoyFor(int(v.bcryptCost.Load())); h != nil {
			_ = bcrypt.CompareHashAndPassword(h, []byte(plain))
			return
		}
	}

	v.decoyOnce.Do(func() {
		h, err := v.argon.Hash(decoySecret)
		if err == nil {
			v.decoy = h
		}
	})
	if v.decoy != "" {
		_, _ = v.argon.Compare(plain, v.decoy)
	}
}

// DecoyFormat reports the format Decoy currently verifies against.
func (v *Verifier) DecoyFormat() string {
	if v.bcryptSeen.Load() > v.argonSeen.Load() {
		return FormatBcrypt
	}
	return FormatArgon2id
}

func (v *Verifier) bcryptDecoyFor(cost int) []byte {
	v.bcryptMu.Lock()
	defer v.bcryptMu.Unlock()

	if v.bcryptDecoy == nil || v.bcryptDecoyCost != cost {
		h, err := bcrypt.GenerateFromPassword([]byte(decoySecret), cost)
		if err != nil {
			return nil
		}
		v.bcryptDecoy, v.bcryptDecoyCost = h, cost
	}
	return v.bcryptDecoy
}

func isBcrypt(stored string) bool {
	return len(stored) == 60 &&
		(strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$"))
}
