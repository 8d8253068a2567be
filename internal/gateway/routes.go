package gateway

import "strings"

// DefaultPublicPaths は認証なしで閲覧できるページ。完全一致で判定する。
var DefaultPublicPaths = []string{"/", "/login", "/signup", "/register", "/forgot-password", "/about"}

// ゲートが使う固定のパス。
const (
	loginPath = "/login"
	homePath  = "/dashboard"
)

// ungatedPrefixes はゲートを通さないパスの先頭セグメント。
// APIはレコードAPI側で認証され、静的アセットは誰でも取得できる。
var ungatedPrefixes = []string{"/api", "/_next/static", "/_next/image", "/favicon.ico", "/public"}

// RouteKind はパスの分類。
type RouteKind int

const (
	// RouteProtected は有効なセッションが必要なページ。
	RouteProtected RouteKind = iota
	// RoutePublic は誰でも閲覧できるページ。
	RoutePublic
)

// String はログに使う文字列表現を返す。
func (k RouteKind) String() string {
	if k == RoutePublic {
		return "public"
	}
	return "protected"
}

// RouteClassifier は公開パスの一覧でパスを分類する。生成後は変更しない。
type RouteClassifier struct {
	public map[string]struct{}
}

// NewRouteClassifier は公開パスの一覧から分類器を生成する。
func NewRouteClassifier(publicPaths []string) *RouteClassifier {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}
	return &RouteClassifier{public: public}
}

// Classify はパスを分類する。末尾スラッシュやサブパスは公開扱いにしない。
func (rc *RouteClassifier) Classify(path string) RouteKind {
	if _, ok := rc.public[path]; ok {
		return RoutePublic
	}
	return RouteProtected
}

// IsAuthOnlyRoute はログイン済みユーザーに見せるべきでないページかどうかを返す。
// 公開パスの一覧をそのまま使う。
func (rc *RouteClassifier) IsAuthOnlyRoute(path string) bool {
	return rc.Classify(path) == RoutePublic
}

// isGated はパスがゲートの対象かどうかを返す。
// 除外はセグメント単位で判定し、"/apiary" のようなパスは対象のままにする。
func isGated(path string) bool {
	for _, p := range ungatedPrefixes {
		if hasSegmentPrefix(path, p) {
			return false
		}
	}
	return true
}

// isAPIPath はレコードAPIへ転送するパスかどうかを返す。
func isAPIPath(path string) bool {
	return hasSegmentPrefix(path, "/api")
}

// hasSegmentPrefix はpathがprefixと一致するか、prefix + "/" で始まるかを返す。
func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
