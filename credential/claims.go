package credential

import (
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-vcagent/core"
)

const (
	BaseContext        = "https://www.w3.org/2018/credentials/v1"
	BaseCredentialType = "VerifiableCredential"

	subjectIDClaim = "id"
)

// vcClaims is the JWT-VC payload: registered claims carry issuer, subject,
// id and validity, the vc member carries the credential body.
type vcClaims struct {
	VC vcBody `json:"vc"`
	jwt.RegisteredClaims
}

type vcBody struct {
	Context           []string       `json:"@context"`
	Type              []string       `json:"type"`
	CredentialSubject map[string]any `json:"credentialSubject"`
}

// normalizeTypes puts the base type first and drops blanks and repeats.
func normalizeTypes(types []string) []string {
	out := []string{BaseCredentialType}
	for _, value := range types {
		value = strings.TrimSpace(value)
		if value == "" || slices.Contains(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}

func subjectClaims(subject string, claims map[string]any) map[string]any {
	out := make(map[string]any, len(claims)+1)
	for key, value := range claims {
		out[key] = value
	}
	out[subjectIDClaim] = subject
	return out
}

func credentialFromClaims(claims *vcClaims, encoded string) core.Credential {
	credential := core.Credential{
		ID:      claims.ID,
		Issuer:  claims.Issuer,
		Subject: claims.Subject,
		Types:   append([]string(nil), claims.VC.Type...),
		JWT:     encoded,
	}
	if len(claims.VC.CredentialSubject) > 0 {
		credential.Claims = map[string]any{}
		for key, value := range claims.VC.CredentialSubject {
			if key == subjectIDClaim {
				continue
			}
			credential.Claims[key] = value
		}
	}
	if claims.IssuedAt != nil {
		credential.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		credential.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return credential
}
