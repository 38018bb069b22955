package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/trinitychain/trinitychain/pkg/types"
)

func TestHash_MatchesSHA256(t *testing.T) {
	tests := [][]byte{
		[]byte{},
		[]byte("hello"),
		[]byte("trinitychain"),
	}

	for _, input := range tests {
		got := Hash(input)
		want := sha256.Sum256(input)
		if got != types.Hash(want) {
			t.Errorf("Hash(%q) = %x, want %x", input, got, want)
		}
	}
}

func TestHash_Deterministic(t *testing.T) {
	data := []byte("deterministic test input")
	h1 := Hash(data)
	h2 := Hash(data)
	if h1 != h2 {
		t.Errorf("Hash is not deterministic: %x != %x", h1, h2)
	}
}

func TestHash_DifferentInputs(t *testing.T) {
	h1 := Hash([]byte("input A"))
	h2 := Hash([]byte("input B"))
	if h1 == h2 {
		t.Error("different inputs produced the same hash")
	}
}

func TestDoubleHash_NotSameAsHash(t *testing.T) {
	data := []byte("test data")
	single := Hash(data)
	double := DoubleHash(data)
	if single == double {
		t.Error("DoubleHash should not equal single Hash")
	}
}

func TestDoubleHash_MatchesNestedHash(t *testing.T) {
	data := []byte("hello")
	first := Hash(data)
	want := Hash(first[:])
	got := DoubleHash(data)
	if got != want {
		t.Errorf("DoubleHash(%q) = %x, want %x", data, got, want)
	}
}

func TestHashConcat(t *testing.T) {
	a := Hash([]byte("left"))
	b := Hash([]byte("right"))
	result := HashConcat(a, b)

	if result == (types.Hash{}) {
		t.Error("HashConcat returned zero hash")
	}

	reversed := HashConcat(b, a)
	if result == reversed {
		t.Error("HashConcat(a,b) should differ from HashConcat(b,a)")
	}

	again := HashConcat(a, b)
	if result != again {
		t.Error("HashConcat is not deterministic")
	}
}

func TestHashConcat_EqualsManualConcat(t *testing.T) {
	a := Hash([]byte("left"))
	b := Hash([]byte("right"))

	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	want := Hash(buf[:])

	got := HashConcat(a, b)
	if got != want {
		t.Errorf("HashConcat = %x, want %x", got, want)
	}
}

func TestAddressFromPubKey_Deterministic(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	pub := key.PublicKey()

	a1 := AddressFromPubKey(pub)
	a2 := AddressFromPubKey(pub)
	if a1 != a2 {
		t.Error("AddressFromPubKey is not deterministic")
	}

	want := Hash(pub)
	if types.Hash(a1) != want {
		t.Error("AddressFromPubKey should equal SHA-256(pubkey)")
	}
}
