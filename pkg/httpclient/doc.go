// Package httpclient は上流サービスとのHTTP通信を行うクライアントを提供する。
//
// ゲートウェイが認証サービス（/auth/me, /auth/refresh, /auth/login）や
// ページレンダラーを呼び出す際に使用する。呼び出しは1回のみでリトライしない。
// レスポンスヘッダーは加工せずに返すため、Set-Cookieをそのまま中継できる。
package httpclient
