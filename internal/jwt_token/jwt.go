package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// Token purposes. A bearer token authenticates the caller; a cosign token
// adds a second principal's authorization to one request.
const (
	PurposeBearer = "bearer"
	PurposeCosign = "cosign"
)

// Claims are the principal token claims. The principal is the subject.
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Principal parses the subject.
func (c *Claims) Principal() (id.Principal, error) {
	return id.ParsePrincipal(c.Subject)
}

// JWTService mints and validates principal tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// GenerateToken signs a token asserting principal for purpose.
func (s *JWTService) GenerateToken(principal id.Principal, purpose string, expiresIn time.Duration) (string, error) {
	if principal.IsNil() {
		return "", dErrors.New(dErrors.CodeValidation, "principal is required")
	}
	if purpose != PurposeBearer && purpose != PurposeCosign {
		return "", dErrors.New(dErrors.CodeValidation, "unknown token purpose")
	}
	now := s.now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signedToken, nil
}

// ValidateToken verifies signature, issuer, audience and expiry.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidatePrincipal validates tokenString and checks it was minted for
// purpose.
func (s *JWTService) ValidatePrincipal(tokenString, purpose string) (id.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Purpose != purpose {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token purpose mismatch")
	}
	p, err := claims.Principal()
	if err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return p, nil
}
