// 通知サービスのエントリポイント。
// 他サービスからのイベントを通知として保存し、ユーザーごとの通知一覧・
// 既読管理APIを提供する。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/nao1215/recipeshare/internal/notification"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".envファイルが見つかりません。環境変数を使用します")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8086"
	}

	server, err := notification.NewServer(port)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("通知サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
