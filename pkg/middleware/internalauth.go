package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/recipeshare/pkg/httpclient"
)

// InternalAuth はサービス間呼び出しの内部認証を行うGinミドルウェアを返す。
//
// 内部専用エンドポイントに適用し、X-Internal-Api-Keyヘッダーの値が
// 共有シークレットと完全一致する場合のみ後続のハンドラを実行する。
// ヘッダーが欠落している場合と値が不一致の場合で、403レスポンスの
// メッセージを区別する。検証は同期的かつ状態を持たず、ログ出力以外の
// 副作用はない。
func InternalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(httpclient.HeaderKeyInternalAPIKey)
		if key == "" {
			log.Printf("[InternalAuth] 内部認証ヘッダーなし: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "内部認証ヘッダーがありません",
			})
			return
		}

		if key != secret {
			log.Printf("[InternalAuth] 内部認証キー不一致: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "内部認証キーが不正です",
			})
			return
		}

		c.Next()
	}
}
