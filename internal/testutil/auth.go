package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTSecret signs the bearer tokens issued by Token.
const JWTSecret = "test-secret"

// Token returns a bearer token for username signed with JWTSecret.
func Token(t *testing.T, username string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(JWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}
