package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const sealPrefix = "vcagent.seal.v1:"

const algorithmAESGCM = "aes-256-gcm"

const TextCodeSealFailed = "AGENT_SEAL_FAILED"

// AppKeySealer seals wallet secrets with AES-GCM under an application key.
// The label passed to Seal is bound as associated data, so a sealed secret
// only opens under the label it was sealed for. Retired keys can still open
// older envelopes but never seal new ones.
type AppKeySealer struct {
	key     []byte
	keyID   string
	version int
	retired map[string][]byte
}

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type Option func(*AppKeySealer)

func WithKeyID(id string) Option {
	return func(sealer *AppKeySealer) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			sealer.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(sealer *AppKeySealer) {
		if version > 0 {
			sealer.version = version
		}
	}
}

// WithRetiredKey registers key material that may still open envelopes
// sealed under keyID.
func WithRetiredKey(keyID string, keyMaterial []byte) Option {
	return func(sealer *AppKeySealer) {
		id := strings.TrimSpace(keyID)
		material := bytes.TrimSpace(keyMaterial)
		if id == "" || len(material) == 0 {
			return
		}
		if sealer.retired == nil {
			sealer.retired = map[string][]byte{}
		}
		sealer.retired[id] = normalizeKey(material)
	}
}

func NewAppKeySealer(keyMaterial []byte, opts ...Option) (*AppKeySealer, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, sealerError(goerrors.CategoryBadInput, "security: key material is required", nil)
	}
	sealer := &AppKeySealer{
		key:     normalizeKey(key),
		keyID:   "app-key",
		version: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sealer)
		}
	}
	return sealer, nil
}

func NewAppKeySealerFromString(key string, opts ...Option) (*AppKeySealer, error) {
	return NewAppKeySealer([]byte(key), opts...)
}

func (s *AppKeySealer) Seal(_ context.Context, plaintext []byte, label []byte) ([]byte, error) {
	if s == nil {
		return nil, sealerError(goerrors.CategoryInternal, "security: sealer is nil", nil)
	}
	if len(plaintext) == 0 {
		return nil, sealerError(goerrors.CategoryBadInput, "security: plaintext is required", nil)
	}
	gcm, err := newGCM(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, sealerError(goerrors.CategoryInternal, "security: nonce generation failed", err)
	}
	data, err := json.Marshal(envelope{
		KeyID:      s.keyID,
		Version:    s.version,
		Algorithm:  algorithmAESGCM,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, label)),
	})
	if err != nil {
		return nil, sealerError(goerrors.CategoryInternal, "security: encode envelope", err)
	}
	return append([]byte(sealPrefix), data...), nil
}

func (s *AppKeySealer) Open(_ context.Context, sealed []byte, label []byte) ([]byte, error) {
	if s == nil {
		return nil, sealerError(goerrors.CategoryInternal, "security: sealer is nil", nil)
	}
	payload, ok := bytes.CutPrefix(sealed, []byte(sealPrefix))
	if !ok {
		return nil, sealerError(goerrors.CategoryBadInput, "security: not a sealed envelope", nil)
	}
	var parsed envelope
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, sealerError(goerrors.CategoryBadInput, "security: decode envelope", err)
	}
	if parsed.Algorithm != "" && parsed.Algorithm != algorithmAESGCM {
		return nil, sealerError(goerrors.CategoryBadInput, fmt.Sprintf("security: unsupported algorithm %q", parsed.Algorithm), nil)
	}
	key, err := s.keyFor(parsed)
	if err != nil {
		return nil, err
	}
	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return nil, sealerError(goerrors.CategoryBadInput, "security: decode nonce", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return nil, sealerError(goerrors.CategoryBadInput, "security: decode ciphertext", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, label)
	if err != nil {
		return nil, sealerError(goerrors.CategoryAuth, "security: envelope authentication failed", err)
	}
	return plaintext, nil
}

func (s *AppKeySealer) keyFor(parsed envelope) ([]byte, error) {
	if parsed.KeyID == "" || parsed.KeyID == s.keyID {
		if parsed.Version > 0 && parsed.Version != s.version {
			return nil, sealerError(
				goerrors.CategoryBadInput,
				fmt.Sprintf("security: key version mismatch: got %d want %d", parsed.Version, s.version),
				nil,
			)
		}
		return s.key, nil
	}
	if key, ok := s.retired[parsed.KeyID]; ok {
		return key, nil
	}
	return nil, sealerError(goerrors.CategoryBadInput, fmt.Sprintf("security: unknown key id %q", parsed.KeyID), nil)
}

func (s *AppKeySealer) KeyID() string {
	if s == nil {
		return ""
	}
	return s.keyID
}

func (s *AppKeySealer) Version() int {
	if s == nil {
		return 0
	}
	return s.version
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, sealerError(goerrors.CategoryInternal, "security: create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, sealerError(goerrors.CategoryInternal, "security: create gcm", err)
	}
	return gcm, nil
}

func normalizeKey(value []byte) []byte {
	if len(value) == 32 {
		return bytes.Clone(value)
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

func sealerError(category goerrors.Category, message string, cause error) error {
	status := http.StatusInternalServerError
	switch category {
	case goerrors.CategoryBadInput:
		status = http.StatusBadRequest
	case goerrors.CategoryAuth:
		status = http.StatusUnauthorized
	}
	if cause == nil {
		return goerrors.New(message, category).
			WithCode(status).
			WithTextCode(TextCodeSealFailed)
	}
	return goerrors.Wrap(cause, category, message).
		WithCode(status).
		WithTextCode(TextCodeSealFailed)
}
