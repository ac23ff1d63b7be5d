package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-vcagent/core"
	"github.com/goliatone/go-vcagent/wallet"
)

const (
	ReasonMalformed        = "malformed credential"
	ReasonSignatureInvalid = "signature invalid"
	ReasonExpired          = "credential expired"
	ReasonNotYetValid      = "credential not yet valid"
	ReasonIssuerMismatch   = "issuer does not control signing key"
	ReasonUnverifiable     = "credential key cannot be resolved"
)

var errIssuerKeyMismatch = errors.New("credential: issuer did does not match kid")

// Verifier checks JWT-VC signatures against the verkey named in the header
// and requires the issuer DID to be the one derived from that verkey. It
// holds no keys.
type Verifier struct {
	now    func() time.Time
	leeway time.Duration
}

type VerifierOption func(*Verifier)

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func WithLeeway(leeway time.Duration) VerifierOption {
	return func(v *Verifier) {
		if leeway > 0 {
			v.leeway = leeway
		}
	}
}

func NewVerifier(opts ...VerifierOption) *Verifier {
	verifier := &Verifier{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier
}

// VerifyCredential reports an invalid credential through the result; the
// error return is reserved for unusable input.
func (v *Verifier) VerifyCredential(_ context.Context, encoded string) (core.VerificationResult, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return core.VerificationResult{}, credentialValidationError("credential", "encoded credential is required")
	}
	claims := &vcClaims{}
	parsed, err := jwt.ParseWithClaims(encoded, claims, keyFromHeader,
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(v.leeway),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		result := core.VerificationResult{Verified: false, Reason: failureReason(err)}
		if result.Reason != ReasonMalformed {
			result.Credential = credentialFromClaims(claims, encoded)
		}
		return result, nil
	}
	if !parsed.Valid {
		return core.VerificationResult{Verified: false, Reason: ReasonSignatureInvalid}, nil
	}
	return core.VerificationResult{Verified: true, Credential: credentialFromClaims(claims, encoded)}, nil
}

func keyFromHeader(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || strings.TrimSpace(kid) == "" {
		return nil, fmt.Errorf("%w: missing kid", jwt.ErrTokenUnverifiable)
	}
	claims, ok := token.Claims.(*vcClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if !wallet.DIDMatchesVerkey(claims.Issuer, kid) {
		return nil, errIssuerKeyMismatch
	}
	return wallet.DecodeVerkey(kid)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errIssuerKeyMismatch):
		return ReasonIssuerMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ReasonSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ReasonNotYetValid
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonUnverifiable
	default:
		return ReasonMalformed
	}
}

var _ core.CredentialVerifier = (*Verifier)(nil)
