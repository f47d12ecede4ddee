package chat

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	_ "modernc.org/sqlite"

	chatdb "github.com/nao1215/recipeshare/internal/chat/db"
	"github.com/nao1215/recipeshare/pkg/event"
	"github.com/nao1215/recipeshare/pkg/httpclient"
	"github.com/nao1215/recipeshare/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testInternalKey はテスト用の内部認証キー。
const testInternalKey = "test-internal-key"

// setupTestServer はテスト用のチャットサーバーをインメモリSQLiteで構築する。
// 通知サービスのモックも生成し、受信したイベントをチャネルに流す。
func setupTestServer(t *testing.T) (*Server, *gin.Engine, <-chan event.Message) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	// 通知サービスのモックサーバーを作成する
	published := make(chan event.Message, 16)
	notificationMock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg event.Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		published <- msg
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(notificationMock.Close)

	router := gin.New()
	s := &Server{
		router:                 router,
		port:                   "0",
		queries:                chatdb.New(sqlDB),
		db:                     sqlDB,
		hub:                    NewHub(),
		publisher:              event.NewPublisher(testInternalKey),
		notificationServiceURL: notificationMock.URL,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}

	// JWTミドルウェアの代わりにテスト用のユーザーID設定ミドルウェアを使用する
	fakeAuth := func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}

	api := router.Group("/api/v1")
	api.Use(fakeAuth)
	{
		messages := api.Group("/chat/messages")
		{
			messages.POST("", s.handleSendMessage())
			messages.GET("", s.handleListConversation())
		}
	}

	ws := router.Group("/ws")
	ws.Use(fakeAuth)
	{
		ws.GET("", s.handleWebSocket())
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuth(testInternalKey))
	{
		internal.POST("/trigger-event", s.handleTriggerEvent())
	}

	return s, router, published
}

// dialWebSocket はテスト用HTTPサーバーへWebSocket接続を確立するヘルパー関数。
func dialWebSocket(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"X-User-ID": []string{userID}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("WebSocket接続に失敗: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForConnections はユーザーの接続がハブに登録されるまで待機するヘルパー関数。
// ハンドシェイク完了からハブ登録までのわずかな間にプッシュが先行しないようにする。
func waitForConnections(t *testing.T, h *Hub, userID string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.conns[userID])
		h.mu.Unlock()
		if n >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("WebSocket接続がハブに登録されなかった: user_id=%s", userID)
}

// readFrame はWebSocket接続からプッシュフレームを1件読み取るヘルパー関数。
func readFrame(t *testing.T, conn *websocket.Conn) pushFrame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("読み取りタイムアウトの設定に失敗: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("WebSocketフレームの読み取りに失敗: %v", err)
	}

	var frame pushFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("プッシュフレームのデコードに失敗: %v, raw=%s", err, raw)
	}
	return frame
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// TestHandleSendMessage はメッセージ送信ハンドラのテスト。
func TestHandleSendMessage(t *testing.T) {
	t.Parallel()

	t.Run("メッセージを送信し会話履歴から取得できる", func(t *testing.T) {
		t.Parallel()
		_, router, published := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/chat/messages", "alice", map[string]string{
			"recipient_id": "bob",
			"body":         "こんにちは",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
		result := parseJSON(t, w)
		if result["body"] != "こんにちは" {
			t.Errorf("body: got %v, want こんにちは", result["body"])
		}

		// 受信者への通知イベントが発行される
		select {
		case msg := <-published:
			if msg.UserID != "bob" {
				t.Errorf("通知先UserID: got %q, want bob", msg.UserID)
			}
			if msg.Event != event.TypeChatMessage {
				t.Errorf("通知イベント種類: got %q, want %q", msg.Event, event.TypeChatMessage)
			}
		case <-time.After(time.Second):
			t.Error("通知イベントが発行されなかった")
		}

		// 会話履歴に含まれることを確認する
		w2 := doRequest(router, http.MethodGet, "/api/v1/chat/messages?with=alice", "bob", nil)
		if w2.Code != http.StatusOK {
			t.Fatalf("会話履歴取得のステータスコード: got %d, want %d", w2.Code, http.StatusOK)
		}
		conversation := parseJSON(t, w2)
		messages, _ := conversation["messages"].([]any)
		if len(messages) != 1 {
			t.Errorf("メッセージ数: got %d, want 1", len(messages))
		}
	})

	t.Run("接続中の受信者へWebSocketでプッシュされる", func(t *testing.T) {
		t.Parallel()
		s, router, _ := setupTestServer(t)

		server := httptest.NewServer(router)
		t.Cleanup(server.Close)

		conn := dialWebSocket(t, server, "bob")
		waitForConnections(t, s.hub, "bob", 1)

		w := doRequest(router, http.MethodPost, "/api/v1/chat/messages", "alice", map[string]string{
			"recipient_id": "bob",
			"body":         "リアルタイム配信テスト",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusCreated)
		}

		frame := readFrame(t, conn)
		if frame.Event != event.TypeChatMessage {
			t.Errorf("フレームのイベント種類: got %q, want %q", frame.Event, event.TypeChatMessage)
		}
		var msg messageResponse
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			t.Fatalf("フレームデータのデコードに失敗: %v", err)
		}
		if msg.Body != "リアルタイム配信テスト" {
			t.Errorf("プッシュされたメッセージ本文: got %q, want リアルタイム配信テスト", msg.Body)
		}
		if msg.SenderID != "alice" {
			t.Errorf("プッシュされた送信者: got %q, want alice", msg.SenderID)
		}
	})

	t.Run("recipient_idが空の場合はBadRequest", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/chat/messages", "alice", map[string]string{"body": "宛先なし"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("ユーザーIDが未設定の場合はUnauthorized", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/chat/messages", "", map[string]string{
			"recipient_id": "bob",
			"body":         "匿名メッセージ",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("通知サービスが停止していても送信は成功する", func(t *testing.T) {
		t.Parallel()
		s, router, _ := setupTestServer(t)

		dead := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		deadURL := dead.URL
		dead.Close()
		s.notificationServiceURL = deadURL

		w := doRequest(router, http.MethodPost, "/api/v1/chat/messages", "alice", map[string]string{
			"recipient_id": "bob",
			"body":         "配信先停止テスト",
		})
		if w.Code != http.StatusCreated {
			t.Errorf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
	})
}

// TestHandleListConversation は会話履歴取得ハンドラのテスト。
func TestHandleListConversation(t *testing.T) {
	t.Parallel()

	// insertMessage はメッセージをDBに直接挿入するヘルパー関数。
	insertMessage := func(t *testing.T, s *Server, id, sender, recipient, body string, createdAt time.Time) {
		t.Helper()
		err := s.queries.CreateMessage(t.Context(), chatdb.CreateMessageParams{
			ID:          id,
			SenderID:    sender,
			RecipientID: recipient,
			Body:        body,
			CreatedAt:   createdAt,
		})
		if err != nil {
			t.Fatalf("テスト用メッセージの作成に失敗: %v", err)
		}
	}

	t.Run("双方向のメッセージが新しい順で返される", func(t *testing.T) {
		t.Parallel()
		s, router, _ := setupTestServer(t)

		base := time.Now().UTC().Add(-time.Hour)
		insertMessage(t, s, "msg-1", "alice", "bob", "最初のメッセージ", base)
		insertMessage(t, s, "msg-2", "bob", "alice", "返信", base.Add(time.Minute))
		insertMessage(t, s, "msg-3", "alice", "carol", "別の会話", base.Add(2*time.Minute))

		w := doRequest(router, http.MethodGet, "/api/v1/chat/messages?with=bob", "alice", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := parseJSON(t, w)
		messages, _ := result["messages"].([]any)
		if len(messages) != 2 {
			t.Fatalf("メッセージ数: got %d, want 2", len(messages))
		}
		if result["total"] != float64(2) {
			t.Errorf("total: got %v, want 2", result["total"])
		}

		first, _ := messages[0].(map[string]any)
		if first["id"] != "msg-2" {
			t.Errorf("先頭のメッセージID: got %v, want msg-2", first["id"])
		}
	})

	t.Run("withパラメータがない場合はBadRequest", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodGet, "/api/v1/chat/messages", "alice", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("不正なページネーションはBadRequest", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodGet, "/api/v1/chat/messages?with=bob&page=0", "alice", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleTriggerEvent はイベント受信（内部API）ハンドラのテスト。
func TestHandleTriggerEvent(t *testing.T) {
	t.Parallel()

	// sendTriggerEvent は内部認証キー付きでイベントを送信するヘルパー関数。
	sendTriggerEvent := func(router *gin.Engine, key string, body any) *httptest.ResponseRecorder {
		jsonBytes, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/internal/trigger-event", bytes.NewReader(jsonBytes))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(httpclient.HeaderKeyInternalAPIKey, key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("接続中のユーザーへイベントが中継される", func(t *testing.T) {
		t.Parallel()
		s, router, _ := setupTestServer(t)

		server := httptest.NewServer(router)
		t.Cleanup(server.Close)

		conn := dialWebSocket(t, server, "user-1")
		waitForConnections(t, s.hub, "user-1", 1)

		body := map[string]any{
			"user_id": "user-1",
			"event":   string(event.TypeNotificationCreated),
			"data":    map[string]string{"title": "新しい通知"},
		}
		w := sendTriggerEvent(router, testInternalKey, body)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		result := parseJSON(t, w)
		if result["delivered"] != float64(1) {
			t.Errorf("delivered: got %v, want 1", result["delivered"])
		}

		frame := readFrame(t, conn)
		if frame.Event != event.TypeNotificationCreated {
			t.Errorf("フレームのイベント種類: got %q, want %q", frame.Event, event.TypeNotificationCreated)
		}
	})

	t.Run("未接続のユーザーでも成功しdeliveredは0", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		body := map[string]any{
			"user_id": "offline-user",
			"event":   string(event.TypeNotificationCreated),
		}
		w := sendTriggerEvent(router, testInternalKey, body)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := parseJSON(t, w)
		if result["delivered"] != float64(0) {
			t.Errorf("delivered: got %v, want 0", result["delivered"])
		}
	})

	t.Run("内部認証キーがない場合は403", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		body := map[string]any{"user_id": "user-1", "event": "system"}
		w := sendTriggerEvent(router, "", body)
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("user_idが未指定の場合はBadRequest", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		body := map[string]any{"event": "system"}
		w := sendTriggerEvent(router, testInternalKey, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHubMultipleConnections は同一ユーザーの複数接続への配信を検証する。
func TestHubMultipleConnections(t *testing.T) {
	t.Parallel()

	s, router, _ := setupTestServer(t)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	conn1 := dialWebSocket(t, server, "user-1")
	conn2 := dialWebSocket(t, server, "user-1")
	waitForConnections(t, s.hub, "user-1", 2)

	w := doRequest(router, http.MethodPost, "/api/v1/chat/messages", "alice", map[string]string{
		"recipient_id": "user-1",
		"body":         "複数接続テスト",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusCreated)
	}

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		frame := readFrame(t, conn)
		if frame.Event != event.TypeChatMessage {
			t.Errorf("接続%dのイベント種類: got %q, want %q", i+1, frame.Event, event.TypeChatMessage)
		}
	}
}
