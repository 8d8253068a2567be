package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiredLocally はJWT形式のトークンのexpクレームが過去であればtrueを返す。
// 署名は検証しない。期限切れが明らかなトークンで上流への往復を省くためだけに使う。
// JWTとして解釈できない、またはexpを持たないトークンは不透明な値とみなしfalseを返す。
func ExpiredLocally(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
