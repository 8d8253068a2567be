package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout は上流呼び出し1回あたりのデフォルトタイムアウト。
// ゲートウェイはページ配信のクリティカルパス上で呼び出すため短く保つ。
const DefaultTimeout = 5 * time.Second

// headerKeyRequestID はリクエストIDを上流へ伝播するためのHTTPヘッダーキー。
const headerKeyRequestID = "X-Request-ID"

// Client は上流サービス呼び出し用のHTTPクライアント。
// リトライは行わず、1回の試行のみを行う。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithTimeout は1回の呼び出しのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New は新しいHTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "https://api.example.com"）を指定する。
// リダイレクトは追従せず、上流の応答をそのまま返す。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response は上流サービスからの応答。ボディは読み取り済み。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。複数値ヘッダーもそのまま保持する。
	Header http.Header
	// Body はレスポンスボディ。
	Body []byte
}

// OK はステータスコードが2xxかどうかを返す。
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// SetCookies はSet-Cookieヘッダーの値を受信順のまま返す。
// 属性文字列を再構築しないよう、値はパースしない。
func (r *Response) SetCookies() []string {
	return r.Header.Values("Set-Cookie")
}

// Get は指定パスにGETリクエストを送信する。
func (c *Client) Get(ctx context.Context, path string, header http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, header)
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// 2xx以外のステータスもエラーにはせず、Responseとして返す。
func (c *Client) PostJSON(ctx context.Context, path string, body any, header http.Header) (*Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
	}

	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set("Content-Type", "application/json")
	return c.Do(ctx, http.MethodPost, path, bytes.NewReader(jsonBody), h)
}

// Do は任意のメソッドでリクエストを送信する共通処理。
// pathにはクエリ文字列を含めてよい。エラーはネットワーク層の失敗のみを表す。
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	// コンテキストからリクエストIDを伝播する
	if requestID, ok := ctx.Value(contextKeyRequestID).(string); ok && requestID != "" {
		req.Header.Set(headerKeyRequestID, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// 上流呼び出し時にX-Request-IDヘッダーとして伝播される。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}
