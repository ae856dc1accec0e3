package service

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNewBcryptHasher_Cost(t *testing.T) {
	tests := []struct {
		name string
		cost int
		want int
	}{
		{"min cost", bcrypt.MinCost, bcrypt.MinCost},
		{"custom cost", 6, 6},
		{"zero falls back", 0, bcrypt.DefaultCost},
		{"too high falls back", bcrypt.MaxCost + 1, bcrypt.DefaultCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBcryptHasher(tt.cost).(*bcryptHasher)
			if h.cost != tt.want {
				t.Errorf("cost = %d, want %d", h.cost, tt.want)
			}
		})
	}
}

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "pw1" || !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("Hash() = %q, want a bcrypt hash", hash)
	}

	if err := h.Compare(hash, "pw1"); err != nil {
		t.Errorf("Compare() with correct password error = %v", err)
	}
	if err := h.Compare(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Compare() with wrong password error = %v, want ErrPasswordMismatch", err)
	}
}

func TestBcryptHasher_Salted(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("same")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	second, err := h.Hash("same")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if first == second {
		t.Error("hashes of the same password should differ")
	}
}

func TestBcryptHasher_CompareMalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	err := h.Compare("not-a-hash", "pw1")
	if err == nil {
		t.Fatal("Compare() should fail for malformed hash")
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("malformed hash should not be reported as a mismatch")
	}
}

func TestBcryptHasher_PasswordTooLong(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	if _, err := h.Hash(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Errorf("Hash() of %d bytes error = %v", MaxPasswordBytes, err)
	}
	// 25 three-byte runes: under 72 characters, over 72 bytes.
	if _, err := h.Hash(strings.Repeat("€", 25)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Hash() error = %v, want ErrPasswordTooLong", err)
	}
}
