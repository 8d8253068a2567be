// Package gateway はエッジ認証ゲートウェイの内部実装を提供する。
//
// 全ページリクエストの前段で公開・保護ページを分類し、access_token と
// refresh_token のCookieから認証状態を判定する。必要に応じて上流の認証サービスで
// アクセストークンを検証し、失効していればリフレッシュ交換を行って新しいCookieを
// そのまま中継する。判定はリクエスト単位で完結し、リクエスト間の状態は持たない。
//
// 通過したリクエストはページレンダラーへ、/api 配下はレコードAPIへ転送する。
package gateway
