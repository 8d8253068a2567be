package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/aviary/pkg/httpclient"
)

// 設定エラー。いずれも起動時に致命的として扱う。
var (
	// ErrMissingUpstreamURL は上流APIのベースURLが未設定であることを表す。
	ErrMissingUpstreamURL = errors.New("上流APIのベースURLが設定されていません")
	// ErrInvalidUpstreamURL は上流APIのベースURLが絶対URLでないことを表す。
	ErrInvalidUpstreamURL = errors.New("上流APIのベースURLが不正です")
	// ErrInvalidRendererURL はページレンダラーのURLが絶対URLでないことを表す。
	ErrInvalidRendererURL = errors.New("レンダラーのURLが不正です")
	// ErrLoginPathNotPublic はログインページが公開パスに含まれていないことを表す。
	ErrLoginPathNotPublic = errors.New("ログインページが公開パスに含まれていません")
	// ErrMetricsPortConflict はメトリクス用ポートが公開ポートと同じであることを表す。
	ErrMetricsPortConflict = errors.New("メトリクス用ポートは公開ポートと別にする必要があります")
)

// Config はゲートウェイの設定。起動時に一度だけ読み込み、検証する。
type Config struct {
	// Port はリッスンポート。
	Port string `yaml:"port"`
	// MetricsPort は /metrics を提供する内部用のリッスンポート。
	// 公開ポートには /metrics を載せない。
	MetricsPort string `yaml:"metrics_port"`
	// UpstreamURL は認証サービスとレコードAPIのベースURL。必須。
	UpstreamURL string `yaml:"upstream_url"`
	// RendererURL はページを描画するレンダラーのベースURL。
	RendererURL string `yaml:"renderer_url"`
	// ValidateAccessToken がtrueの場合、保護ページへのアクセスごとに
	// /auth/me でアクセストークンを検証する。
	// falseの場合はCookieの存在のみを信頼し、失効はAPI呼び出し時の401で検出する。
	ValidateAccessToken bool `yaml:"validate_access_token"`
	// LocalExpiryCheck がtrueの場合、JWT形式のアクセストークンのexpを
	// ローカルで確認し、期限切れなら /auth/me を呼ばずに失敗とする。
	LocalExpiryCheck bool `yaml:"local_expiry_check"`
	// UpstreamTimeout は上流呼び出し1回あたりのタイムアウト。
	UpstreamTimeout time.Duration `yaml:"-"`
	// UpstreamTimeoutRaw はYAML上の文字列表現（例: "5s"）。
	UpstreamTimeoutRaw string `yaml:"upstream_timeout"`
	// RendererTimeout はページレンダラーへの転送1回あたりのタイムアウト。
	RendererTimeout time.Duration `yaml:"-"`
	// RendererTimeoutRaw はYAML上の文字列表現（例: "30s"）。
	RendererTimeoutRaw string `yaml:"renderer_timeout"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `yaml:"allowed_origins"`
	// PublicPaths は認証不要なパス。完全一致で判定する。
	PublicPaths []string `yaml:"public_paths"`
}

// DefaultRendererTimeout はページレンダラーへの転送のデフォルトタイムアウト。
// 認証サービスの呼び出しとは別に設定する。
const DefaultRendererTimeout = 30 * time.Second

// DefaultConfig はデフォルト値を持つ設定を返す。UpstreamURLは空のまま。
func DefaultConfig() Config {
	return Config{
		Port:                "8080",
		MetricsPort:         "9090",
		RendererURL:         "http://localhost:3000",
		ValidateAccessToken: true,
		LocalExpiryCheck:    true,
		UpstreamTimeout:     httpclient.DefaultTimeout,
		RendererTimeout:     DefaultRendererTimeout,
		PublicPaths:         append([]string(nil), DefaultPublicPaths...),
	}
}

// LoadConfig は環境変数（とGATEWAY_CONFIGで指定されたYAMLファイル）から設定を読み込み、検証する。
// 環境変数はYAMLの値より優先される。
func LoadConfig() (Config, error) {
	return loadConfig(os.Getenv)
}

// loadConfig は環境変数の取得方法を差し替え可能にしたLoadConfigの本体。
func loadConfig(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if path := getenv("GATEWAY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("設定ファイルのパースに失敗: %w", err)
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	for _, t := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{name: "upstream_timeout", raw: cfg.UpstreamTimeoutRaw, dst: &cfg.UpstreamTimeout},
		{name: "renderer_timeout", raw: cfg.RendererTimeoutRaw, dst: &cfg.RendererTimeout},
	} {
		if t.raw == "" {
			continue
		}
		d, err := time.ParseDuration(t.raw)
		if err != nil {
			return Config{}, fmt.Errorf("%sのパースに失敗: %w", t.name, err)
		}
		*t.dst = d
	}

	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv は設定されている環境変数で値を上書きする。
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		cfg.Port = v
	}
	// NEXT_PUBLIC_API_BASE_URL は旧フロントエンドとの互換のために受け付ける
	if v := getEnvOr(getenv, "API_BASE_URL", getenv("NEXT_PUBLIC_API_BASE_URL")); v != "" {
		cfg.UpstreamURL = v
	}
	if v := getenv("METRICS_PORT"); v != "" {
		cfg.MetricsPort = v
	}
	if v := getenv("RENDERER_URL"); v != "" {
		cfg.RendererURL = v
	}
	if v := getenv("UPSTREAM_TIMEOUT"); v != "" {
		cfg.UpstreamTimeoutRaw = v
	}
	if v := getenv("RENDERER_TIMEOUT"); v != "" {
		cfg.RendererTimeoutRaw = v
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	for key, dst := range map[string]*bool{
		"VALIDATE_ACCESS_TOKEN": &cfg.ValidateAccessToken,
		"LOCAL_EXPIRY_CHECK":    &cfg.LocalExpiryCheck,
	} {
		v := getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sのパースに失敗: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Validate は設定を検証する。上流URLが無い状態で起動してはならない。
// 設定は変更しない。
func (c Config) Validate() error {
	if strings.TrimSpace(c.UpstreamURL) == "" {
		return ErrMissingUpstreamURL
	}
	if !isAbsoluteHTTPURL(c.UpstreamURL) {
		return fmt.Errorf("%w: %q", ErrInvalidUpstreamURL, c.UpstreamURL)
	}
	if !isAbsoluteHTTPURL(c.RendererURL) {
		return fmt.Errorf("%w: %q", ErrInvalidRendererURL, c.RendererURL)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("上流タイムアウトは正の値である必要があります: %v", c.UpstreamTimeout)
	}
	if c.RendererTimeout <= 0 {
		return fmt.Errorf("レンダラーのタイムアウトは正の値である必要があります: %v", c.RendererTimeout)
	}
	if c.MetricsPort == c.Port {
		return fmt.Errorf("%w: %q", ErrMetricsPortConflict, c.Port)
	}
	for _, p := range c.PublicPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("公開パスは / で始まる必要があります: %q", p)
		}
	}
	if !slices.Contains(c.PublicPaths, loginPath) {
		return ErrLoginPathNotPublic
	}
	return nil
}

// normalized はベースURLの末尾スラッシュを除いた設定のコピーを返す。
func (c Config) normalized() Config {
	c.UpstreamURL = strings.TrimRight(c.UpstreamURL, "/")
	c.RendererURL = strings.TrimRight(c.RendererURL, "/")
	c.PublicPaths = slices.Clone(c.PublicPaths)
	return c
}

// isAbsoluteHTTPURL はhttpまたはhttpsの絶対URLかどうかを返す。
func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(getenv func(string) string, key, defaultValue string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return defaultValue
}
