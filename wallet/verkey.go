package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
)

func EncodeVerkey(public ed25519.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(public)
}

func DecodeVerkey(verkey string) (ed25519.PublicKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(verkey))
	if err != nil {
		return nil, walletValidationError("verkey", "verkey is not base64url")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, walletValidationError("verkey", "verkey has wrong length")
	}
	return ed25519.PublicKey(raw), nil
}

// DIDForKey derives the local DID from the first half of the public key.
func DIDForKey(public ed25519.PublicKey) string {
	return DIDPrefix + base64.RawURLEncoding.EncodeToString(public[:16])
}

func DIDMatchesVerkey(did string, verkey string) bool {
	public, err := DecodeVerkey(verkey)
	if err != nil {
		return false
	}
	return strings.TrimSpace(did) == DIDForKey(public)
}
