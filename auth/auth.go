package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Kartikroy01/video-chat/config"
	"github.com/Kartikroy01/video-chat/logger"
)

var (
	// ErrUnauthenticated means the credential is missing, malformed,
	// expired, or carries a bad signature.
	ErrUnauthenticated = errors.New("authentication failed")
	// ErrUnauthorized means the credential is valid but the user is not
	// approved or has been banned.
	ErrUnauthorized = errors.New("user not authorized")
)

// Identity is the resolved caller of a connection. It is bound to the
// connection once at handshake time and never re-validated per event.
type Identity struct {
	UserID      string
	Alias       string
	Institution string
}

// Claims is the JWT payload issued by the account service. The subject is
// the user id; alias and institution are the anonymous profile shown to
// matched peers.
type Claims struct {
	Alias       string `json:"alias"`
	Institution string `json:"institution"`
	Approved    bool   `json:"approved"`
	jwt.RegisteredClaims
}

// Gateway authenticates new connections. Signature and static claims come
// from the token; the ban list is checked in Redis so bans issued by
// moderators apply without waiting for the token to expire.
type Gateway struct {
	cfg         *config.AuthConfig
	redisClient *redis.Client
}

func NewGateway(cfg *config.AuthConfig, redisClient *redis.Client) *Gateway {
	return &Gateway{
		cfg:         cfg,
		redisClient: redisClient,
	}
}

// Authenticate resolves a credential token to an Identity. It returns
// ErrUnauthenticated or ErrUnauthorized (possibly wrapped); callers use
// errors.Is to pick the refusal status.
func (g *Gateway) Authenticate(ctx context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.cfg.JWTSecret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("%w: token invalid", ErrUnauthenticated)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: malformed claims", ErrUnauthenticated)
	}

	if !claims.Approved {
		return Identity{}, fmt.Errorf("%w: user %s not approved", ErrUnauthorized, claims.Subject)
	}

	banned, err := g.isBanned(ctx, claims.Subject)
	if err != nil {
		// Fail open so a Redis outage does not lock everyone out.
		logger.Errorf("Failed to check ban status for user %s: %v", claims.Subject, err)
	}
	if banned {
		return Identity{}, fmt.Errorf("%w: user %s is banned", ErrUnauthorized, claims.Subject)
	}

	return Identity{
		UserID:      claims.Subject,
		Alias:       claims.Alias,
		Institution: claims.Institution,
	}, nil
}

func (g *Gateway) isBanned(ctx context.Context, userID string) (bool, error) {
	if g.redisClient == nil {
		return false, nil
	}

	key := fmt.Sprintf("%s:%s", g.cfg.BanListKey, userID)
	exists, err := g.redisClient.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis command failed: %w", err)
	}
	return exists == 1, nil
}
