package middleware

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey int

const (
	contextKeyAccountID contextKey = iota
)

type claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId"`
}

// Auth verifies the auth_token cookie and passes the account id to the context.
func Auth(tokenKey []byte) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("auth_token")
			if err != nil {
				http.Error(w, "can not get cookie", http.StatusUnauthorized)
				return
			}

			c := claims{}
			token, err := jwt.ParseWithClaims(cookie.Value, &c, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return tokenKey, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyAccountID, c.AccountID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountID extracts the authenticated account id from context.
func AccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKeyAccountID).(string)
	return id, ok
}
