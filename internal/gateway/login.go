package gateway

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/aviary/internal/identity"
	"github.com/nao1215/aviary/pkg/httpclient"
	"github.com/nao1215/aviary/pkg/middleware"
)

// handleLogin はログイン送信を上流の /auth/login へ中継するハンドラを返す。
// 入力が空の場合は上流を呼ばずに400を返す。
// 上流のステータスとボディはそのまま返し、Cookieの発行は上流に任せる。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "リクエストボディが不正です"})
			return
		}
		if req.UsernameOrEmail == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "username_or_email and password are required"})
			return
		}

		requestID := middleware.GetRequestID(c)
		ctx := httpclient.WithRequestID(c.Request.Context(), requestID)
		res, err := s.identity.Login(ctx, req)
		if err != nil {
			log.Printf("[Login] request_id=%s 上流の呼び出しに失敗: %v", requestID, err)
			c.JSON(http.StatusBadGateway, gin.H{"detail": "認証サービスとの通信に失敗しました"})
			return
		}

		appendSetCookies(c.Writer.Header(), res.SetCookies)
		contentType := res.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(res.StatusCode, contentType, res.Body)
	}
}

// handleVerify は認証情報Cookieの有無だけを返すハンドラを返す。
// 上流には問い合わせない。
func (s *Server) handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if inspectCredentials(c.Request).Empty() {
			c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"authenticated": true})
	}
}
