// レシピサービスのエントリポイント。
// レシピの投稿・閲覧・いいねを提供し、通知サービスとユーザーサービスへ
// イベントを発行する。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/nao1215/recipeshare/internal/recipe"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".envファイルが見つかりません。環境変数を使用します")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	server, err := recipe.NewServer(port)
	if err != nil {
		log.Fatalf("レシピサーバーの初期化に失敗: %v", err)
	}

	log.Printf("レシピサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("レシピサービスの起動に失敗: %v", err)
	}
}
