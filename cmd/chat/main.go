// チャットサービスのエントリポイント。
// ダイレクトメッセージの保存とWebSocketによるリアルタイム配信を担当する。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/nao1215/recipeshare/internal/chat"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".envファイルが見つかりません。環境変数を使用します")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	server, err := chat.NewServer(port)
	if err != nil {
		log.Fatalf("チャットサーバーの初期化に失敗: %v", err)
	}

	log.Printf("チャットサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("チャットサービスの起動に失敗: %v", err)
	}
}
