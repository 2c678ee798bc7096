// Package auth builds, signs and verifies credentials: claim sets, HS256
// access tokens and refresh-token secrets with their stored fingerprints.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the JWT body of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Gender     string   `json:"gender,omitempty"`
	Roles      []string `json:"role,omitempty"`
}

// ClaimSet converts the token body back to the claim set it was issued from.
func (c *AccessClaims) ClaimSet() ClaimSet {
	set := ClaimSet{
		{Type: ClaimName, Value: c.Name},
		{Type: ClaimSubject, Value: c.Subject},
		{Type: ClaimEmail, Value: c.Email},
		{Type: ClaimGivenName, Value: c.GivenName},
		{Type: ClaimFamilyName, Value: c.FamilyName},
		{Type: ClaimGender, Value: c.Gender},
	}
	for _, r := range c.Roles {
		set = append(set, Claim{Type: ClaimRole, Value: r})
	}
	return set
}

// AccessToken is a signed token together with its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

type IssuerConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Validity time.Duration
}

// Issuer signs and verifies HS256 access tokens. It holds only immutable
// configuration and is safe for concurrent use.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	validity time.Duration
	now      func() time.Time
}

func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: empty signing secret", common.ErrConfiguration)
	}
	if cfg.Validity <= 0 {
		return nil, fmt.Errorf("%w: access token validity must be positive", common.ErrConfiguration)
	}
	return &Issuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		validity: cfg.Validity,
		now:      time.Now,
	}, nil
}

// Issue signs a token carrying claims, valid from now for the configured
// validity.
func (i *Issuer) Issue(claims ClaimSet) (*AccessToken, error) {
	now := i.now()
	expires := now.Add(i.validity)

	body := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	if i.audience != "" {
		body.Audience = jwt.ClaimStrings{i.audience}
	}

	for _, c := range claims {
		switch c.Type {
		case ClaimName:
			body.Name = c.Value
		case ClaimSubject:
			body.Subject = c.Value
		case ClaimEmail:
			body.Email = c.Value
		case ClaimGivenName:
			body.GivenName = c.Value
		case ClaimFamilyName:
			body.FamilyName = c.Value
		case ClaimGender:
			body.Gender = c.Value
		case ClaimRole:
			body.Roles = append(body.Roles, c.Value)
		default:
			return nil, fmt.Errorf("unsupported claim type %q", c.Type)
		}
	}
	if body.Subject == "" {
		return nil, errors.New("claim set has no subject")
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, body).SignedString(i.secret)
	if err != nil {
		return nil, err
	}
	return &AccessToken{Token: signed, ExpiresAt: expires}, nil
}

// Parse verifies signature, issuer, audience and expiry. An expired token
// yields common.ErrTokenExpired, any other failure common.ErrInvalidToken.
func (i *Issuer) Parse(token string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
