// Package credential decodes bearer credentials into display identities.
//
// Decoding is untrusted parsing: the signature is never verified and the
// result must only be used for display. Authorization stays with the server,
// which rejects expired or forged credentials with a 401.
package credential

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

// Claim aliases in lookup order. The first non-empty value wins.
var (
	subjectClaims = []string{"sub", "nameid", "id"}
	emailClaims   = []string{"email", "unique_name"}
)

// DecodeError reports a credential that could not be parsed at all.
type DecodeError struct {
	err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode credential: %v", e.err)
}

func (e *DecodeError) Unwrap() error {
	return e.err
}

// Is makes errors.Is(err, domain.ErrDecode) hold for every DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == domain.ErrDecode
}

var parser = jwt.NewParser()

// Decode extracts the identity claims from raw.
//
// A malformed token yields a *DecodeError. A well-formed token without any
// subject or email claim yields a nil identity and a nil error; callers must
// treat that as a rejected credential.
func Decode(raw string) (*domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &DecodeError{err: jwt.ErrTokenMalformed}
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, &DecodeError{err: err}
	}

	id := firstClaim(claims, subjectClaims)
	email := firstClaim(claims, emailClaims)
	if id == "" && email == "" {
		return nil, nil
	}

	identity := &domain.Identity{ID: id, Email: email}
	// exp is informational; a malformed exp does not reject the credential
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time.UTC()
		identity.ExpiresAt = &t
	}
	return identity, nil
}

func firstClaim(claims jwt.MapClaims, names []string) string {
	for _, name := range names {
		if v := claimString(claims[name]); v != "" {
			return v
		}
	}
	return ""
}

func claimString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
