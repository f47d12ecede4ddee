package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/recipeshare/pkg/httpclient"
)

// newInternalAuthRouter はInternalAuthを適用したテスト用ルーターを生成する。
func newInternalAuthRouter(secret string) *gin.Engine {
	router := gin.New()
	internal := router.Group("/internal", InternalAuth(secret))
	internal.POST("/trigger-event", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	})
	return router
}

// TestInternalAuth は内部認証ミドルウェアを検証する。
func TestInternalAuth(t *testing.T) {
	t.Parallel()

	t.Run("正しい内部認証キーの場合はハンドラが実行されること", func(t *testing.T) {
		t.Parallel()

		router := newInternalAuthRouter("shared-secret")

		req := httptest.NewRequest(http.MethodPost, "/internal/trigger-event", nil)
		req.Header.Set(httpclient.HeaderKeyInternalAPIKey, "shared-secret")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["status"] != "accepted" {
			t.Errorf("status = %q, want %q", body["status"], "accepted")
		}
	})

	t.Run("内部認証ヘッダーがない場合は403が返ること", func(t *testing.T) {
		t.Parallel()

		router := newInternalAuthRouter("shared-secret")

		req := httptest.NewRequest(http.MethodPost, "/internal/trigger-event", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["error"] != "forbidden" {
			t.Errorf("error = %q, want %q", body["error"], "forbidden")
		}
		if body["message"] != "内部認証ヘッダーがありません" {
			t.Errorf("message = %q, want %q", body["message"], "内部認証ヘッダーがありません")
		}
	})

	t.Run("内部認証キーが不一致の場合は403が返ること", func(t *testing.T) {
		t.Parallel()

		router := newInternalAuthRouter("shared-secret")

		req := httptest.NewRequest(http.MethodPost, "/internal/trigger-event", nil)
		req.Header.Set(httpclient.HeaderKeyInternalAPIKey, "wrong-secret")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["message"] != "内部認証キーが不正です" {
			t.Errorf("message = %q, want %q", body["message"], "内部認証キーが不正です")
		}
	})

	t.Run("ヘッダー欠落とキー不一致でメッセージが区別されること", func(t *testing.T) {
		t.Parallel()

		router := newInternalAuthRouter("shared-secret")

		missing := httptest.NewRequest(http.MethodPost, "/internal/trigger-event", nil)
		wMissing := httptest.NewRecorder()
		router.ServeHTTP(wMissing, missing)

		invalid := httptest.NewRequest(http.MethodPost, "/internal/trigger-event", nil)
		invalid.Header.Set(httpclient.HeaderKeyInternalAPIKey, "wrong-secret")
		wInvalid := httptest.NewRecorder()
		router.ServeHTTP(wInvalid, invalid)

		if wMissing.Body.String() == wInvalid.Body.String() {
			t.Error("ヘッダー欠落とキー不一致でレスポンスボディが同一になっている")
		}
	})
}
