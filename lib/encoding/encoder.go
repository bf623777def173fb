// Package encoding signs and seals component mount parameters.
//
// Lazy placeholders carry the parameters a component will be mounted with
// once the client asks for it. Those parameters travel through the browser,
// so the server attaches a checksum (or seals them entirely) and refuses to
// mount from parameters it did not produce.
package encoding

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// Errors returned by Verify and Open.
var (
	ErrInvalidFormat    = errors.New("encoding: invalid format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: decryption failed")
)

// Encoder handles checksums and sealing of parameter maps.
// It supports two modes:
//   - Signed (default): the value stays readable, a checksum makes it tamper-proof
//   - Sealed: AES-256-GCM, fully opaque to the client
type Encoder struct {
	key []byte
	gcm cipher.AEAD
}

// NewEncoder creates a new encoder with the given key.
// Keys shorter than 32 bytes are stretched with SHA-256.
func NewEncoder(key []byte) (*Encoder, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}
	key = key[:32]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		key: key,
		gcm: gcm,
	}, nil
}

// Checksum returns the signature of v.
//
// The value is first normalized through JSON (so a map built in Go and the
// same map decoded from a request body produce identical bytes) and then
// packed as msgpack with sorted map keys.
func (e *Encoder) Checksum(v any) (string, error) {
	packed, err := canonical(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(e.mac(packed)), nil
}

// Verify checks that checksum was produced by Checksum for an equal value.
func (e *Encoder) Verify(v any, checksum string) error {
	sig, err := base64.RawURLEncoding.DecodeString(checksum)
	if err != nil || len(sig) == 0 {
		return ErrInvalidFormat
	}
	packed, err := canonical(v)
	if err != nil {
		return err
	}
	if !hmac.Equal(sig, e.mac(packed)) {
		return ErrSignatureInvalid
	}
	return nil
}

// Seal encrypts v and returns an opaque string.
func (e *Encoder) Seal(v any) (string, error) {
	packed, err := canonical(v)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := e.gcm.Seal(nonce, nonce, packed, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a string produced by Seal into a parameter map.
func (e *Encoder) Open(sealed string) (map[string]any, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	if len(ciphertext) < e.gcm.NonceSize() {
		return nil, ErrInvalidFormat
	}

	nonce := ciphertext[:e.gcm.NonceSize()]
	ciphertext = ciphertext[e.gcm.NonceSize():]

	packed, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	var out map[string]any
	if err := msgpack.Unmarshal(packed, &out); err != nil {
		return nil, ErrInvalidFormat
	}
	return out, nil
}

func (e *Encoder) mac(data []byte) []byte {
	m := hmac.New(sha256.New, e.key)
	m.Write(data)
	return m.Sum(nil)[:16] // 16 bytes = 128 bits
}

// canonical produces a deterministic byte form of v.
func canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
