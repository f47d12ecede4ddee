// ユーザーサービスのエントリポイント。
// プロフィール管理とゲーミフィケーションスコアの集計を担当する。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/nao1215/recipeshare/internal/user"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".envファイルが見つかりません。環境変数を使用します")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server, err := user.NewServer(port)
	if err != nil {
		log.Fatalf("ユーザーサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ユーザーサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("ユーザーサービスの起動に失敗: %v", err)
	}
}
