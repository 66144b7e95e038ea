package serverutils

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LoadRSAPublicKey reads the PEM-encoded token validation key.
func LoadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jwt public key: %w", err)
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jwt public key: %w", err)
	}
	return key, nil
}

// JwtMiddleware rejects requests without a valid RS256 bearer token.
func JwtMiddleware(publicKey *rsa.PublicKey, audience, issuer string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		claims, err := parseBearerToken(ctx, publicKey, audience, issuer)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).
				JSON(ErrorResponse(fiber.StatusUnauthorized, err.Error()))
		}

		ctx.Locals("username", subjectOf(claims))
		ctx.Locals("authenticated", true)
		return ctx.Next()
	}
}

// OptionalJwtMiddleware parses a bearer token when one is present but lets
// anonymous requests through. Handlers read Locals("authenticated").
func OptionalJwtMiddleware(publicKey *rsa.PublicKey, audience, issuer string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if ctx.Get("Authorization") == "" {
			ctx.Locals("authenticated", false)
			return ctx.Next()
		}

		claims, err := parseBearerToken(ctx, publicKey, audience, issuer)
		if err != nil {
			ctx.Locals("authenticated", false)
			return ctx.Next()
		}

		ctx.Locals("username", subjectOf(claims))
		ctx.Locals("authenticated", true)
		return ctx.Next()
	}
}

func parseBearerToken(ctx *fiber.Ctx, publicKey *rsa.PublicKey, audience, issuer string) (jwt.MapClaims, error) {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return nil, fmt.Errorf("missing bearer token")
	}
	// No validation key configured: every token is rejected.
	if publicKey == nil {
		return nil, fmt.Errorf("invalid token")
	}
	tokenStr := authHeader[7:]

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return publicKey, nil
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	return claims, nil
}

func subjectOf(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return "unknown"
}
