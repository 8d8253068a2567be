package gateway

import (
	"net/http"
	"time"

	"github.com/nao1215/aviary/internal/identity"
)

// Credentials はリクエストに含まれるセッション認証情報の組。
// 片方だけが存在する状態も正当な中間状態として扱う。
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// HasAccess はアクセストークンが存在するかを返す。
func (c Credentials) HasAccess() bool { return c.AccessToken != "" }

// HasRefresh はリフレッシュトークンが存在するかを返す。
func (c Credentials) HasRefresh() bool { return c.RefreshToken != "" }

// Empty はどちらのトークンも存在しないかを返す。
func (c Credentials) Empty() bool { return !c.HasAccess() && !c.HasRefresh() }

// inspectCredentials はリクエストのCookieから認証情報を読み取る。
// 空や不正なCookieは存在しないものとして扱う。
func inspectCredentials(r *http.Request) Credentials {
	return Credentials{
		AccessToken:  cookieValue(r, identity.CookieAccessToken),
		RefreshToken: cookieValue(r, identity.CookieRefreshToken),
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// clearCredentialCookies は両方の認証情報Cookieを削除する指示をレスポンスに追加する。
func clearCredentialCookies(h http.Header) {
	for _, name := range []string{identity.CookieAccessToken, identity.CookieRefreshToken} {
		c := &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
		}
		h.Add("Set-Cookie", c.String())
	}
}

// appendSetCookies は上流から受け取ったSet-Cookieを加工せずに追加する。
func appendSetCookies(h http.Header, cookies []string) {
	for _, c := range cookies {
		h.Add("Set-Cookie", c)
	}
}
