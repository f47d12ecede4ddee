// API Gatewayサービスのエントリポイント。
// パスプレフィックスに基づくリクエストルーティングを担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/nao1215/recipeshare/internal/gateway"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".envファイルが見つかりません。環境変数を使用します")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server, err := gateway.NewServer(port)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
