// Package middleware はゲートウェイで使用する共通Ginミドルウェアを提供する。
//
// パニックリカバリ、リクエストIDの付与、CORS設定を含む。
// 認証判定そのものは internal/gateway のゲートが担当する。
package middleware
