// Package identity は上流の認証サービスへの呼び出しを提供する。
//
// アクセストークンの検証（GET /auth/me）、リフレッシュ交換（POST /auth/refresh）、
// ログインの転送（POST /auth/login）を担当する。トークンは不透明な値として扱い、
// ゲートウェイが値を組み立てることはない。
package identity
