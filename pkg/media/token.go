package media

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VideoGrant lists the room permissions embedded in an access token.
type VideoGrant struct {
	RoomJoin  bool   `json:"roomJoin,omitempty"`
	RoomAdmin bool   `json:"roomAdmin,omitempty"`
	Room      string `json:"room,omitempty"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

// AccessToken mints room join tokens signed with the media server's API
// secret.
type AccessToken struct {
	apiKey    string
	apiSecret string

	identity string
	name     string
	grant    VideoGrant
	ttl      time.Duration
}

// NewAccessToken creates a token builder for the given API key pair.
func NewAccessToken(apiKey, apiSecret string) *AccessToken {
	return &AccessToken{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       6 * time.Hour,
	}
}

func (t *AccessToken) SetIdentity(identity string) *AccessToken {
	t.identity = identity
	return t
}

func (t *AccessToken) SetName(name string) *AccessToken {
	t.name = name
	return t
}

func (t *AccessToken) SetVideoGrant(grant VideoGrant) *AccessToken {
	t.grant = grant
	return t
}

func (t *AccessToken) SetValidFor(ttl time.Duration) *AccessToken {
	t.ttl = ttl
	return t
}

// ToJWT signs and serializes the token.
func (t *AccessToken) ToJWT() (string, error) {
	if t.apiKey == "" || t.apiSecret == "" {
		return "", fmt.Errorf("media: access token requires api key and secret")
	}
	if t.identity == "" {
		return "", fmt.Errorf("media: access token requires an identity")
	}

	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.apiKey,
			Subject:   t.identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Name:  t.name,
		Video: &t.grant,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.apiSecret))
	if err != nil {
		return "", fmt.Errorf("media: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token produced by ToJWT. Used by
// tests and by the room-service API when authenticating agent requests.
func VerifyToken(raw, apiSecret string) (identity, room string, err error) {
	var claims tokenClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("media: unexpected signing method %v", token.Header["alg"])
		}
		return []byte(apiSecret), nil
	})
	if err != nil {
		return "", "", fmt.Errorf("media: verify token: %w", err)
	}
	if claims.Video != nil {
		room = claims.Video.Room
	}
	return claims.Subject, room, nil
}
