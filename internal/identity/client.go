package identity

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/nao1215/aviary/pkg/httpclient"
)

// 認証情報Cookieの名前。値は上流の認証サービスだけが発行する。
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
)

// 上流認証サービスのエンドポイント。
const (
	pathMe      = "/auth/me"
	pathRefresh = "/auth/refresh"
	pathLogin   = "/auth/login"
)

// 上流呼び出しの種別。メトリクスのラベルに使う。
const (
	CallValidate = "validate"
	CallRefresh  = "refresh"
	CallLogin    = "login"
)

// Validation はアクセストークン検証の結果。
type Validation int

const (
	// Valid は上流が2xxを返したことを表す。
	Valid Validation = iota
	// Invalid は上流が2xx以外を返したか、ローカルで期限切れと判定されたことを表す。
	Invalid
	// NetworkError は上流に到達できなかったことを表す。Invalidと同様に扱う。
	NetworkError
)

// String はメトリクスやログに使う文字列表現を返す。
func (v Validation) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// RefreshOutcome はリフレッシュ交換の結果。
type RefreshOutcome struct {
	// Success は上流が2xxを返した場合にtrue。
	Success bool
	// SetCookies は上流応答のSet-Cookie値。受信順のまま加工しない。
	SetCookies []string
}

// LoginRequest はログイン送信の内容。
type LoginRequest struct {
	// UsernameOrEmail はユーザー名またはメールアドレス。
	UsernameOrEmail string `json:"username_or_email"`
	// Password はパスワード。
	Password string `json:"password"`
	// RememberMe はリフレッシュトークンを長期化するかどうか。
	RememberMe bool `json:"remember_me"`
}

// LoginResult は上流のログイン応答。ステータスとボディは加工せずに中継する。
type LoginResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
	SetCookies  []string
}

// Observer は上流呼び出しの結果を受け取る。
type Observer interface {
	ObserveUpstream(call, result string, elapsed time.Duration)
}

// Client は上流認証サービスのクライアント。
// 各呼び出しは1回のみで、リトライは行わない。
type Client struct {
	// upstream は上流へのHTTPクライアント。
	upstream *httpclient.Client
	// localExpiryCheck が有効な場合、JWT形式のトークンの期限をローカルで確認する。
	localExpiryCheck bool
	// observer は呼び出し結果の通知先。nilの場合は通知しない。
	observer Observer
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// ClientOption はClientの設定を変更する関数。
type ClientOption func(*Client)

// WithLocalExpiryCheck はアクセストークンのローカル期限確認を有効または無効にする。
func WithLocalExpiryCheck(enabled bool) ClientOption {
	return func(c *Client) {
		c.localExpiryCheck = enabled
	}
}

// WithObserver は上流呼び出し結果の通知先を設定する。
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient は新しい認証サービスクライアントを生成する。
func NewClient(hc *httpclient.Client, opts ...ClientOption) *Client {
	c := &Client{
		upstream: hc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate はアクセストークンを /auth/me に送って検証する。
// 2xxのみValidとし、それ以外のステータスやネットワークエラーは失敗として扱う。
func (c *Client) Validate(ctx context.Context, accessToken string) Validation {
	start := time.Now()

	if c.localExpiryCheck && ExpiredLocally(accessToken, c.now()) {
		c.observe(CallValidate, "expired_locally", start)
		return Invalid
	}

	resp, err := c.upstream.Get(ctx, pathMe, cookieHeader(CookieAccessToken, accessToken))
	if err != nil {
		log.Printf("[Validate] 認証サービスへの接続に失敗: %v", err)
		c.observe(CallValidate, NetworkError.String(), start)
		return NetworkError
	}

	result := Invalid
	if resp.OK() {
		result = Valid
	}
	c.observe(CallValidate, result.String(), start)
	return result
}

// Refresh はリフレッシュトークンを /auth/refresh に送り、新しいトークンを取得する。
// 身元はCookieから導出されるため、ボディは空のJSONオブジェクトを送る。
func (c *Client) Refresh(ctx context.Context, refreshToken string) RefreshOutcome {
	start := time.Now()

	resp, err := c.upstream.PostJSON(ctx, pathRefresh, struct{}{}, cookieHeader(CookieRefreshToken, refreshToken))
	if err != nil {
		log.Printf("[Refresh] 認証サービスへの接続に失敗: %v", err)
		c.observe(CallRefresh, "network_error", start)
		return RefreshOutcome{}
	}
	if !resp.OK() {
		log.Printf("[Refresh] リフレッシュに失敗: status=%d", resp.StatusCode)
		c.observe(CallRefresh, "failure", start)
		return RefreshOutcome{}
	}

	cookies := resp.SetCookies()
	if len(cookies) == 0 {
		log.Printf("[Refresh] リフレッシュ応答にSet-Cookieが含まれていません")
	}
	c.observe(CallRefresh, "success", start)
	return RefreshOutcome{Success: true, SetCookies: cookies}
}

// Login はログイン送信を /auth/login に転送する。
// 上流のステータスとボディはそのまま返す。エラーはネットワーク層の失敗のみ。
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	start := time.Now()

	resp, err := c.upstream.PostJSON(ctx, pathLogin, req, nil)
	if err != nil {
		c.observe(CallLogin, "network_error", start)
		return nil, fmt.Errorf("ログインの転送に失敗: %w", err)
	}
	c.observe(CallLogin, statusClass(resp.StatusCode), start)

	return &LoginResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
		SetCookies:  resp.SetCookies(),
	}, nil
}

// observe はObserverが設定されていれば結果を通知する。
func (c *Client) observe(call, result string, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(call, result, time.Since(start))
}

// cookieHeader はトークンを1つだけ含むCookieヘッダーを組み立てる。
// トークンは不透明な値としてそのまま送る。
func cookieHeader(name, value string) http.Header {
	return http.Header{"Cookie": []string{name + "=" + value}}
}

// statusClass はステータスコードを "2xx" のような分類に変換する。
func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
