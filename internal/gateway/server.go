package gateway

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/aviary/internal/identity"
	"github.com/nao1215/aviary/pkg/httpclient"
	"github.com/nao1215/aviary/pkg/middleware"
)

// Server はエッジ認証ゲートウェイのHTTPサーバー。
type Server struct {
	// router は公開ポートのHTTPルーター。
	router *gin.Engine
	// metricsRouter は内部ポートで /metrics を提供するルーター。
	metricsRouter *gin.Engine
	// config は起動時に検証済みの設定。
	config Config
	// routes は公開パスの分類器。
	routes *RouteClassifier
	// identity は上流認証サービスのクライアント。
	identity *identity.Client
	// engine はゲートの判定エンジン。
	engine *Engine
	// upstream はレコードAPIへの転送用クライアント。
	upstream *httpclient.Client
	// renderer はページレンダラーへの転送用クライアント。
	renderer *httpclient.Client
	// metrics はPrometheusメトリクス。
	metrics *Metrics
}

// NewServer は新しいゲートウェイサーバーを生成する。
// 設定が不正な場合は起動させずにエラーを返す。
func NewServer(cfg Config) (*Server, error) {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	metrics := NewMetrics()
	upstream := httpclient.New(cfg.UpstreamURL, httpclient.WithTimeout(cfg.UpstreamTimeout))
	idClient := identity.NewClient(upstream,
		identity.WithLocalExpiryCheck(cfg.LocalExpiryCheck),
		identity.WithObserver(metrics),
	)
	routes := NewRouteClassifier(cfg.PublicPaths)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	metricsRouter := gin.New()
	metricsRouter.Use(middleware.Recovery())

	s := &Server{
		router:        router,
		metricsRouter: metricsRouter,
		config:        cfg,
		routes:        routes,
		identity:      idClient,
		engine:        NewEngine(routes, idClient, cfg.ValidateAccessToken),
		upstream:      upstream,
		renderer:      httpclient.New(cfg.RendererURL, httpclient.WithTimeout(cfg.RendererTimeout)),
		metrics:       metrics,
	}
	s.setupRoutes()

	return s, nil
}

// Run は公開ポートとメトリクス用ポートでHTTPサーバーを起動する。
// どちらかが停止した時点でエラーを返す。
func (s *Server) Run() error {
	errCh := make(chan error, 2)
	go func() {
		log.Printf("[Gateway] メトリクスを :%s で提供します", s.config.MetricsPort)
		errCh <- s.metricsRouter.Run(fmt.Sprintf(":%s", s.config.MetricsPort))
	}()
	go func() {
		errCh <- s.router.Run(fmt.Sprintf(":%s", s.config.Port))
	}()
	return <-errCh
}

// setupRoutes はルーティングを設定する。
// 明示的なルートに一致しないリクエストは全てゲートを経由して転送される。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/api/auth")
	{
		auth.POST("/login", s.handleLogin())
		auth.GET("/verify", s.handleVerify())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
	s.metricsRouter.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router.NoRoute(s.gate(), s.handleForward())
}

// handleForward はゲートを通過したリクエストを転送するハンドラを返す。
// /api 配下は接頭辞を除いてレコードAPIへ、それ以外はページレンダラーへ送る。
func (s *Server) handleForward() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isAPIPath(path) {
			s.doProxy(c, s.upstream, strings.TrimPrefix(path, "/api"))
			return
		}
		s.doProxy(c, s.renderer, path)
	}
}

// forwardedRequestHeaders は転送先へ引き継ぐリクエストヘッダー。
var forwardedRequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"Content-Type",
	"Cookie",
	"If-None-Match",
	"If-Modified-Since",
	"User-Agent",
}

// skippedResponseHeaders は転送時に引き継がないレスポンスヘッダー。
// X-Request-IDはゲートウェイ自身が設定済み。
var skippedResponseHeaders = map[string]struct{}{
	"Connection":          {},
	"Content-Length":      {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"X-Request-Id":        {},
}

// doProxy はリクエストを転送先にプロキシする共通処理。
// 転送先のレスポンスヘッダーは既に設定済みのSet-Cookieを消さないよう追加で書き込む。
func (s *Server) doProxy(c *gin.Context, client *httpclient.Client, path string) {
	header := make(http.Header)
	for _, k := range forwardedRequestHeaders {
		for _, v := range c.Request.Header.Values(k) {
			header.Add(k, v)
		}
	}
	header.Set("X-Forwarded-For", c.ClientIP())
	header.Set("X-Forwarded-Host", c.Request.Host)

	target := path
	if path == "" {
		target = "/"
	}
	if c.Request.URL.RawQuery != "" {
		target += "?" + c.Request.URL.RawQuery
	}

	requestID := middleware.GetRequestID(c)
	ctx := httpclient.WithRequestID(c.Request.Context(), requestID)
	resp, err := client.Do(ctx, c.Request.Method, target, c.Request.Body, header)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "転送先との通信に失敗しました"})
		log.Printf("プロキシエラー: request_id=%s base=%s path=%s error=%v", requestID, client.BaseURL(), path, err)
		return
	}

	dst := c.Writer.Header()
	for k, vs := range resp.Header {
		if _, skip := skippedResponseHeaders[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	c.Status(resp.StatusCode)
	if _, err := c.Writer.Write(resp.Body); err != nil {
		log.Printf("レスポンスの書き込みに失敗: request_id=%s error=%v", requestID, err)
	}
}
