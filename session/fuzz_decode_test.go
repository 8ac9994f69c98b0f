package session

import (
	"testing"
	"time"
)

// FuzzSessionDecode exercises the binary identity decoder with arbitrary
// inputs. Goal: no panics, and anything accepted re-encodes identically.
func FuzzSessionDecode(f *testing.F) {
	id := &Identity{
		UserID:        42,
		Identity:      "admin@example.com",
		Role:          "admin",
		Roles:         []string{"admin", "user"},
		Active:        true,
		Details:       map[string]string{"first_name": "Ada"},
		RememberMe:    true,
		IdleTTL:       7 * 24 * time.Hour,
		EstablishedAt: 1700000000,
	}
	encoded, err := Encode(id)
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{CurrentSchemaVersion})
	f.Add([]byte{255, 255, 255})
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}
	if len(encoded) > 30 {
		f.Add(encoded[:30])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		decoded, err := Decode(data)
		if err != nil {
			return
		}
		again, err := Encode(decoded)
		if err != nil {
			return
		}
		if _, err := Decode(again); err != nil {
			t.Fatalf("re-encoded identity failed to decode: %v", err)
		}
	})
}
