// Package auth holds the request authentication middlewares: provider
// webhook signature checks and bearer token extraction.
package auth

import (
	"context"
	"strings"

	"pos-backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

type tokenKey struct{}

// GinTokenKey is the gin context key holding the bearer token
const GinTokenKey = "auth.token"

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The token is not verified here.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.Unauthorized("Missing authorization header")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", apperr.Unauthorized("Malformed authorization header")
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", apperr.Unauthorized("Malformed authorization header")
	}
	return token, nil
}

// WithToken returns a context carrying token
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token attached by BearerMiddleware
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok
}

// BearerMiddleware requires a bearer credential and attaches it to both the
// gin context and the request context. A nil onError writes a plain JSON
// 401.
func BearerMiddleware(onError func(*gin.Context, error)) gin.HandlerFunc {
	if onError == nil {
		onError = abortJSON
	}
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			onError(c, err)
			c.Abort()
			return
		}

		c.Set(GinTokenKey, token)
		c.Request = c.Request.WithContext(WithToken(c.Request.Context(), token))
		c.Next()
	}
}
