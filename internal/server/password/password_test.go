package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify_Match(t *testing.T) {
	t.Parallel()

	hash, err := Hash("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if hash == "secret" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !Verify("secret", hash) {
		t.Fatalf("expected correct password to verify")
	}
}

func TestVerify_Mismatch(t *testing.T) {
	t.Parallel()

	hash, err := Hash("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if Verify("wrong", hash) {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestVerify_MalformedHashFailsClosed(t *testing.T) {
	t.Parallel()

	if Verify("secret", "not-a-bcrypt-hash") {
		t.Fatalf("malformed stored hash must never verify")
	}
	if Verify("secret", "") {
		t.Fatalf("empty stored hash must never verify")
	}
}

func TestHash_OutOfRangeCostFallsBack(t *testing.T) {
	t.Parallel()

	hash, err := Hash("secret", 99)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("Cost error: %v", err)
	}
	if cost != DefaultCost {
		t.Fatalf("expected fallback to DefaultCost (%d), got %d", DefaultCost, cost)
	}
}

func TestHash_SaltedHashesDiffer(t *testing.T) {
	t.Parallel()

	a, err := Hash("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := Hash("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("two hashes of the same password must differ (per-hash salt)")
	}
}
