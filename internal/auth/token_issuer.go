package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSessionTTL = 30 * time.Minute

var (
	errMissingSigningSecret = errors.New("session issuer: signing secret must be provided")
	errMissingSubjectClaim  = errors.New("session issuer: user id must be provided")
)

// SessionIdentity is the user a session token is minted for.
type SessionIdentity struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
}

// SessionIssuerConfig configures a SessionIssuer. Issuer defaults to "tauth".
type SessionIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// SessionIssuer mints HS256 session tokens in the TAuth claim layout. Production
// sessions come from TAuth itself; this is for local tooling and tests that must
// produce tokens the SessionValidator accepts.
type SessionIssuer struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
}

// NewSessionIssuer constructs a SessionIssuer with defaults applied.
func NewSessionIssuer(cfg SessionIssuerConfig) (*SessionIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// Issue produces a signed token and its expiry for identity.
func (i *SessionIssuer) Issue(identity SessionIdentity) (string, time.Time, error) {
	userID := strings.TrimSpace(identity.UserID)
	if userID == "" {
		return "", time.Time{}, errMissingSubjectClaim
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl)
	claims := SessionClaims{
		UserID:          userID,
		UserEmail:       strings.TrimSpace(identity.Email),
		UserDisplayName: strings.TrimSpace(identity.DisplayName),
		UserAvatarURL:   strings.TrimSpace(identity.AvatarURL),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
