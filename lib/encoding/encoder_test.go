package encoding

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewEncoder(t *testing.T) {
	// Should work with any key length (derives 32-byte key)
	_, err := NewEncoder([]byte("short"))
	if err != nil {
		t.Fatalf("NewEncoder with short key failed: %v", err)
	}

	_, err = NewEncoder([]byte("this-key-is-definitely-longer-than-thirty-two-bytes"))
	if err != nil {
		t.Fatalf("NewEncoder with long key failed: %v", err)
	}
}

func TestChecksumVerify(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	params := map[string]any{"limit": 10, "user": "ada", "tags": []string{"a", "b"}}
	sum, err := enc.Checksum(params)
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if sum == "" {
		t.Fatal("Checksum is empty")
	}

	if err := enc.Verify(params, sum); err != nil {
		t.Errorf("Verify(same params) = %v, want nil", err)
	}
}

func TestChecksumSurvivesJSONRoundTrip(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))

	params := map[string]any{"limit": 10, "nested": map[string]any{"z": true, "a": 1.5}}
	sum, err := enc.Checksum(params)
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}

	// The client sends the params back as JSON; numbers come back as float64.
	raw, _ := json.Marshal(params)
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	if err := enc.Verify(decoded, sum); err != nil {
		t.Errorf("Verify(decoded params) = %v, want nil", err)
	}
}

func TestVerifyTampered(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))

	sum, _ := enc.Checksum(map[string]any{"user": "ada"})

	err := enc.Verify(map[string]any{"user": "eve"}, sum)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify(tampered) = %v, want ErrSignatureInvalid", err)
	}
}

func TestVerifyInvalidFormat(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))

	tests := []string{"", "not base64 !!"}
	for _, sum := range tests {
		err := enc.Verify(map[string]any{}, sum)
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Verify(%q) = %v, want ErrInvalidFormat", sum, err)
		}
	}
}

func TestDifferentKeysDoNotVerify(t *testing.T) {
	enc1, _ := NewEncoder([]byte("key-one"))
	enc2, _ := NewEncoder([]byte("key-two"))

	params := map[string]any{"id": 123}
	sum, _ := enc1.Checksum(params)

	if err := enc2.Verify(params, sum); err == nil {
		t.Error("Expected error when verifying with a different key")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))

	sealed, err := enc.Seal(map[string]any{"account": "acct-42", "limit": 3})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	opened, err := enc.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if opened["account"] != "acct-42" {
		t.Errorf("account = %v, want acct-42", opened["account"])
	}
	if opened["limit"] != float64(3) {
		t.Errorf("limit = %#v, want float64(3)", opened["limit"])
	}
}

func TestOpenTampered(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))

	sealed, _ := enc.Seal(map[string]any{"account": "acct-42"})
	tampered := sealed[:len(sealed)-2] + "XX"

	if _, err := enc.Open(tampered); err == nil {
		t.Error("Expected error for tampered ciphertext, got nil")
	}
	if _, err := enc.Open("short"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Open(short) = %v, want ErrInvalidFormat", err)
	}
}
