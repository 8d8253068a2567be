package gateway

import (
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/aviary/pkg/httpclient"
	"github.com/nao1215/aviary/pkg/middleware"
)

// gate は全ページリクエストの前段で認証状態を判定するGinミドルウェアを返す。
// API・静的アセットはそのまま通過させる。
// 判定に失敗した場合もエラーボディは返さず、リダイレクトのみで表現する。
func (s *Server) gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 判定と転送には正規化後のパスを使う
		reqPath := cleanPath(c.Request.URL.Path)
		c.Request.URL.Path = reqPath
		c.Request.URL.RawPath = ""
		if !isGated(reqPath) {
			c.Next()
			return
		}

		requestID := middleware.GetRequestID(c)
		creds := inspectCredentials(c.Request)
		// クライアントが切断した場合は上流呼び出しも中断される
		ctx := httpclient.WithRequestID(c.Request.Context(), requestID)

		d := s.engine.Decide(ctx, reqPath, creds)
		s.metrics.ObserveDecision(d.Kind, s.routes.Classify(reqPath))
		log.Printf("[Gateway] request_id=%s %s %s access=%t refresh=%t decision=%s",
			requestID, c.Request.Method, reqPath, creds.HasAccess(), creds.HasRefresh(), d.Kind)

		header := c.Writer.Header()
		switch d.Kind {
		case DecisionAllow:
			c.Next()
		case DecisionAllowWithRefreshedCredentials:
			appendSetCookies(header, d.SetCookies)
			c.Next()
		case DecisionRedirectToHome:
			appendSetCookies(header, d.SetCookies)
			c.Redirect(http.StatusFound, homePath)
			c.Abort()
		default:
			clearCredentialCookies(header)
			c.Redirect(http.StatusFound, loginRedirectURL(d.Path))
			c.Abort()
		}
	}
}

// cleanPath は "." と ".." と重複スラッシュを解決したパスを返す。
// 末尾スラッシュは残し、"/login/" が公開パスとして扱われないようにする。
func cleanPath(p string) string {
	cleaned := path.Clean("/" + p)
	if cleaned != "/" && strings.HasSuffix(p, "/") {
		cleaned += "/"
	}
	return cleaned
}

// loginRedirectURL は元のパスを戻り先として持つログインページのURLを返す。
func loginRedirectURL(originalPath string) string {
	q := url.Values{}
	q.Set("redirect", originalPath)
	return loginPath + "?" + q.Encode()
}
