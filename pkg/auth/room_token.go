package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const roomTokenIssuer = "frontdesk"

// RoomGrant is the set of room permissions carried by a token
type RoomGrant struct {
	Room           string `json:"room"`
	RoomJoin       bool   `json:"roomJoin"`
	CanPublishData bool   `json:"canPublishData"`
	CanSubscribe   bool   `json:"canSubscribe"`
}

// RoomClaims are the JWT claims of a room access token. The participant
// identity is the subject.
type RoomClaims struct {
	Grant RoomGrant `json:"grant"`
	jwt.RegisteredClaims
}

// Identity returns the participant identity the token was issued to
func (c *RoomClaims) Identity() string {
	return c.Subject
}

// RoomTokenIssuer signs and verifies room access tokens
type RoomTokenIssuer struct {
	secretKey []byte
	ttl       time.Duration
}

// NewRoomTokenIssuer creates an issuer. ttl defaults to one hour.
func NewRoomTokenIssuer(secretKey string, ttl time.Duration) (*RoomTokenIssuer, error) {
	if secretKey == "" {
		return nil, errors.New("room token secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RoomTokenIssuer{secretKey: []byte(secretKey), ttl: ttl}, nil
}

// Issue returns a signed token letting identity use the room described by grant
func (i *RoomTokenIssuer) Issue(identity string, grant RoomGrant) (string, error) {
	if identity == "" {
		return "", errors.New("identity is required")
	}
	if grant.Room == "" {
		return "", errors.New("room is required")
	}

	now := time.Now()
	claims := RoomClaims{
		Grant: grant,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    roomTokenIssuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign room token: %w", err)
	}
	return token, nil
}

// Verify checks the signature, expiry and issuer of tokenString
func (i *RoomTokenIssuer) Verify(tokenString string) (*RoomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RoomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secretKey, nil
	}, jwt.WithIssuer(roomTokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse room token: %w", err)
	}

	claims, ok := token.Claims.(*RoomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid room token")
	}
	if claims.Subject == "" || claims.Grant.Room == "" {
		return nil, errors.New("room token missing identity or room")
	}
	return claims, nil
}

// ExtractToken extracts the token from an Authorization header value.
// Supports "Bearer <token>" format.
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("empty authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}
