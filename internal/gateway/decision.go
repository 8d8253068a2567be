package gateway

import (
	"context"

	"github.com/nao1215/aviary/internal/identity"
)

// DecisionKind は1リクエストに対するゲートの最終処分。
type DecisionKind int

const (
	// DecisionAllow はそのまま通過させる。
	DecisionAllow DecisionKind = iota
	// DecisionAllowWithRefreshedCredentials は新しい認証情報Cookieを付けて通過させる。
	DecisionAllowWithRefreshedCredentials
	// DecisionRedirectToLogin は認証情報Cookieを削除してログインページへ誘導する。
	DecisionRedirectToLogin
	// DecisionRedirectToHome はログイン済みユーザーをダッシュボードへ誘導する。
	DecisionRedirectToHome
)

// String はメトリクスのラベルとログに使う文字列表現を返す。
func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionAllowWithRefreshedCredentials:
		return "allow_refreshed"
	case DecisionRedirectToLogin:
		return "redirect_login"
	case DecisionRedirectToHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Decision はゲートの判定結果。
type Decision struct {
	// Kind は処分の種類。
	Kind DecisionKind
	// Path は元のリクエストパス。ログインへの誘導時に戻り先として使う。
	Path string
	// SetCookies はリフレッシュで新たに発行されたSet-Cookie値。加工しない。
	SetCookies []string
}

// Authenticator は上流認証サービスに対する検証とリフレッシュ交換を行う。
// *identity.Client が実装する。
type Authenticator interface {
	Validate(ctx context.Context, accessToken string) identity.Validation
	Refresh(ctx context.Context, refreshToken string) identity.RefreshOutcome
}

// Engine はゲートの判定を行う状態機械。リクエスト間で状態を持たない。
type Engine struct {
	routes              *RouteClassifier
	auth                Authenticator
	validateAccessToken bool
}

// NewEngine は判定エンジンを生成する。
// validateAccessTokenがfalseの場合、アクセストークンの存在のみを信頼する。
func NewEngine(routes *RouteClassifier, auth Authenticator, validateAccessToken bool) *Engine {
	return &Engine{
		routes:              routes,
		auth:                auth,
		validateAccessToken: validateAccessToken,
	}
}

// Decide はパスと認証情報から処分を決める。
// 各段階の結果で次の段階の要否が決まるため、処理は逐次に行う。
func (e *Engine) Decide(ctx context.Context, path string, creds Credentials) Decision {
	public := e.routes.Classify(path) == RoutePublic

	switch {
	case creds.Empty():
		if public {
			return Decision{Kind: DecisionAllow, Path: path}
		}
		return Decision{Kind: DecisionRedirectToLogin, Path: path}

	case creds.HasAccess():
		return e.decideWithAccess(ctx, path, creds)

	default:
		// リフレッシュトークンのみ。誰でも見られるページでは交換を強制しない
		if public {
			return Decision{Kind: DecisionAllow, Path: path}
		}
		return e.refresh(ctx, path, creds.RefreshToken)
	}
}

// decideWithAccess はアクセストークンが存在する場合の判定。
func (e *Engine) decideWithAccess(ctx context.Context, path string, creds Credentials) Decision {
	if !e.validateAccessToken || e.auth.Validate(ctx, creds.AccessToken) == identity.Valid {
		if e.routes.IsAuthOnlyRoute(path) {
			return Decision{Kind: DecisionRedirectToHome, Path: path}
		}
		return Decision{Kind: DecisionAllow, Path: path}
	}

	// Invalid と NetworkError は区別せず失敗として扱う
	if !creds.HasRefresh() {
		return Decision{Kind: DecisionRedirectToLogin, Path: path}
	}
	return e.refresh(ctx, path, creds.RefreshToken)
}

// refresh はリフレッシュ交換を行い、結果に応じた処分を返す。
func (e *Engine) refresh(ctx context.Context, path, refreshToken string) Decision {
	out := e.auth.Refresh(ctx, refreshToken)
	if !out.Success {
		return Decision{Kind: DecisionRedirectToLogin, Path: path}
	}

	kind := DecisionAllowWithRefreshedCredentials
	if e.routes.IsAuthOnlyRoute(path) {
		kind = DecisionRedirectToHome
	}
	return Decision{Kind: kind, Path: path, SetCookies: out.SetCookies}
}
