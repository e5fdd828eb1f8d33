// File: internal/middleware/auth.go
package middleware

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"profile_hub_backend/internal/common"
)

// TokenVerifier validates an identity-provider token. Implemented by
// firebase.Service; kept as an interface so tests can substitute a fake.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// AuthMiddleware creates a Gin middleware that verifies the bearer credential
// from the Authorization header and places the verified principal (UID, email,
// claims) in the request context. Every failure maps to a 401.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(common.AuthorizationHeader)
		if authHeader == "" {
			logger.Debug("Authorization header missing")
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header is required."))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], common.AuthorizationTypeBearer) {
			logger.Debug("Authorization header format invalid", zap.String("header", authHeader))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'."))
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			logger.Warn("Token verification failed", zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid authentication credentials: "+err.Error()))
			return
		}

		email := ""
		if v, ok := token.Claims["email"].(string); ok {
			email = v
		}

		c.Set(common.FirebaseUIDKey, token.UID)
		c.Set(common.UserEmailKey, email)
		c.Set(common.UserClaimsKey, token.Claims)

		logger.Debug("User authenticated successfully",
			zap.String("uid", token.UID),
			zap.String("email", email),
		)

		c.Next()
	}
}
