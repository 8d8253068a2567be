// エッジ認証ゲートウェイのエントリポイント。
// 全ページリクエストの認証状態を判定し、期限切れのトークンを透過的にリフレッシュする。
// 上流APIのベースURLが未設定の場合は起動しない。
package main

import (
	"log"

	"github.com/nao1215/aviary/internal/gateway"
)

func main() {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := gateway.NewServer(cfg)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s metrics=:%s upstream=%s validate_access_token=%t",
		cfg.Port, cfg.MetricsPort, cfg.UpstreamURL, cfg.ValidateAccessToken)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
