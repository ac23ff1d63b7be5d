package credential

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vcagent/core"
	"github.com/google/uuid"
)

// Issuer issues JWT-encoded verifiable credentials signed by a key held in
// the wallet. The issuer DID must be a local DID of that wallet.
type Issuer struct {
	wallet     core.Wallet
	now        func() time.Time
	defaultTTL time.Duration
}

type IssuerOption func(*Issuer)

func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithDefaultTTL applies when a request carries no TTL. Zero issues
// credentials without expiry.
func WithDefaultTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl >= 0 {
			i.defaultTTL = ttl
		}
	}
}

func NewIssuer(wallet core.Wallet, opts ...IssuerOption) (*Issuer, error) {
	if wallet == nil {
		return nil, credentialInternalError("credential: issuer wallet is required", nil)
	}
	issuer := &Issuer{wallet: wallet, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer, nil
}

func (i *Issuer) IssueCredential(ctx context.Context, req core.IssueRequest) (core.Credential, error) {
	issuerDID := strings.TrimSpace(req.IssuerDID)
	if issuerDID == "" {
		return core.Credential{}, credentialValidationError("issuer_did", "issuer did is required")
	}
	subject := strings.TrimSpace(req.SubjectDID)
	if subject == "" {
		return core.Credential{}, credentialValidationError("subject_did", "subject did is required")
	}
	if req.TTL < 0 {
		return core.Credential{}, credentialValidationError("ttl", "ttl must not be negative")
	}

	did, err := i.wallet.GetLocalDID(ctx, issuerDID)
	if err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			return core.Credential{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "credential: issuer did is not held by this wallet").
				WithCode(http.StatusBadRequest).
				WithTextCode(CredentialErrorUnknown)
		}
		return core.Credential{}, err
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = "urn:uuid:" + uuid.NewString()
	}
	issuedAt := i.now().UTC().Truncate(time.Second)
	claims := vcClaims{
		VC: vcBody{
			Context:           []string{BaseContext},
			Type:              normalizeTypes(req.Types),
			CredentialSubject: subjectClaims(subject, req.Claims),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    did.DID,
			Subject:   subject,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	ttl := req.TTL
	if ttl == 0 {
		ttl = i.defaultTTL
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = did.Verkey
	signingString, err := token.SigningString()
	if err != nil {
		return core.Credential{}, credentialInternalError("credential: encode token", err)
	}
	signature, err := i.wallet.Sign(ctx, []byte(signingString), did.Verkey)
	if err != nil {
		return core.Credential{}, err
	}
	encoded := signingString + "." + token.EncodeSegment(signature)
	return credentialFromClaims(&claims, encoded), nil
}

var _ core.CredentialIssuer = (*Issuer)(nil)
