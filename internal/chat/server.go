package chat

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	_ "modernc.org/sqlite"

	chatdb "github.com/nao1215/recipeshare/internal/chat/db"
	"github.com/nao1215/recipeshare/pkg/event"
	"github.com/nao1215/recipeshare/pkg/middleware"
)

// Server はチャットサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *chatdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// hub はWebSocket接続の管理ハブ。
	hub *Hub
	// publisher はイベント発行クライアント。
	publisher *event.Publisher
	// notificationServiceURL は通知サービスのベースURL。
	notificationServiceURL string
	// upgrader はHTTP接続をWebSocketへアップグレードする。
	upgrader websocket.Upgrader
}

// NewServer は新しいチャットサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "/data/chat.db"
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	internalSecret := os.Getenv("INTERNAL_API_KEY")
	if internalSecret == "" {
		internalSecret = "dev-internal-key"
	}

	notificationURL := os.Getenv("NOTIFICATION_URL")
	if notificationURL == "" {
		notificationURL = "http://localhost:8086"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:                 router,
		port:                   port,
		queries:                chatdb.New(sqlDB),
		db:                     sqlDB,
		hub:                    NewHub(),
		publisher:              event.NewPublisher(internalSecret),
		notificationServiceURL: notificationURL,
		upgrader: websocket.Upgrader{
			// オリジン検証はゲートウェイのCORS設定に委ねる
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	s.setupRoutes(internalSecret)

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(internalSecret string) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	{
		messages := api.Group("/chat/messages")
		{
			// メッセージの送信
			messages.POST("", s.handleSendMessage())
			// 会話履歴の取得（ページネーション付き）
			messages.GET("", s.handleListConversation())
		}
	}

	// WebSocket接続（リアルタイム受信用）
	ws := s.router.Group("/ws")
	ws.Use(middleware.JWTAuth(jwtSecret))
	{
		ws.GET("", s.handleWebSocket())
	}

	// イベント受信（内部API - 接続中ユーザーへのプッシュ中継）
	internal := s.router.Group("/internal")
	internal.Use(middleware.InternalAuth(internalSecret))
	{
		internal.POST("/trigger-event", s.handleTriggerEvent())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "chat"})
	})
}

// sendMessageRequest はメッセージ送信のリクエストボディ。
type sendMessageRequest struct {
	// RecipientID は受信者のユーザーID。
	RecipientID string `json:"recipient_id" binding:"required"`
	// Body はメッセージ本文。
	Body string `json:"body" binding:"required"`
}

// messageResponse はメッセージのJSONレスポンス構造。
type messageResponse struct {
	// ID はメッセージの一意識別子。
	ID string `json:"id"`
	// SenderID は送信者のユーザーID。
	SenderID string `json:"sender_id"`
	// RecipientID は受信者のユーザーID。
	RecipientID string `json:"recipient_id"`
	// Body はメッセージ本文。
	Body string `json:"body"`
	// CreatedAt はメッセージの作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toMessageResponse はDB行をJSONレスポンスに変換する。
func toMessageResponse(m chatdb.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
}

// parsePagination はクエリパラメータからページ番号と1ページあたりの件数を取得する。
// page, limit とも1以上の整数のみ許可する。
func parsePagination(c *gin.Context) (page, limit int, err error) {
	page = 1
	limit = 20

	if v := c.Query("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("pageは1以上の整数で指定してください")
		}
	}
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("limitは1以上の整数で指定してください")
		}
	}
	return page, limit, nil
}

// handleSendMessage はメッセージを送信するハンドラ。
// メッセージの保存に成功したら、受信者の接続中WebSocketへのプッシュと
// 通知イベントの発行を行う。どちらの失敗も送信の成否に影響しない。
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		senderID := middleware.GetUserID(c)
		if senderID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です: " + err.Error()})
			return
		}

		msg := chatdb.Message{
			ID:          uuid.New().String(),
			SenderID:    senderID,
			RecipientID: req.RecipientID,
			Body:        req.Body,
			CreatedAt:   time.Now().UTC(),
		}
		err := s.queries.CreateMessage(c.Request.Context(), chatdb.CreateMessageParams{
			ID:          msg.ID,
			SenderID:    msg.SenderID,
			RecipientID: msg.RecipientID,
			Body:        msg.Body,
			CreatedAt:   msg.CreatedAt,
		})
		if err != nil {
			log.Printf("メッセージの保存に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メッセージの送信に失敗しました"})
			return
		}

		// 受信者の接続中WebSocketへプッシュする（ベストエフォート）
		if data, err := json.Marshal(toMessageResponse(msg)); err == nil {
			s.hub.Push(req.RecipientID, event.TypeChatMessage, data)
		}

		// 受信者への通知イベントを発行する（ベストエフォート）
		s.publisher.PublishTrigger(c.Request.Context(), s.notificationServiceURL, req.RecipientID, event.TypeChatMessage, event.NotificationData{
			Title:    "新着メッセージ",
			Message:  fmt.Sprintf("%sからメッセージが届きました", senderID),
			SenderID: senderID,
		})

		c.JSON(http.StatusCreated, toMessageResponse(msg))
	}
}

// handleListConversation は指定したユーザーとの会話履歴をページネーション付きで
// 返すハンドラ。作成日時の降順（新しい順）で返す。
func (s *Server) handleListConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		peerID := c.Query("with")
		if peerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "withパラメータで相手のユーザーIDを指定してください"})
			return
		}

		page, limit, err := parsePagination(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		messages, err := s.queries.ListConversation(c.Request.Context(), chatdb.ListConversationParams{
			SenderID:      userID,
			RecipientID:   peerID,
			SenderID_2:    peerID,
			RecipientID_2: userID,
			Limit:         int64(limit),
			Offset:        int64((page - 1) * limit),
		})
		if err != nil {
			log.Printf("会話履歴の取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "会話履歴の取得に失敗しました"})
			return
		}

		total, err := s.queries.CountConversation(c.Request.Context(), chatdb.CountConversationParams{
			SenderID:      userID,
			RecipientID:   peerID,
			SenderID_2:    peerID,
			RecipientID_2: userID,
		})
		if err != nil {
			log.Printf("会話メッセージ数の取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "会話履歴の取得に失敗しました"})
			return
		}

		responses := make([]messageResponse, 0, len(messages))
		for _, m := range messages {
			responses = append(responses, toMessageResponse(m))
		}

		c.JSON(http.StatusOK, gin.H{
			"messages":    responses,
			"total":       total,
			"page":        page,
			"limit":       limit,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
		})
	}
}

// handleWebSocket はWebSocket接続を確立し、切断までハブに登録するハンドラ。
// クライアントからの受信メッセージは読み捨てる（サーバーからのプッシュ専用）。
func (s *Server) handleWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocketアップグレードに失敗: %v", err)
			return
		}

		s.hub.Register(userID, conn)
		defer func() {
			s.hub.Unregister(userID, conn)
			conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// handleTriggerEvent は他サービスからのイベントを受信し、対象ユーザーの
// 接続中WebSocketへ中継するハンドラ。対象ユーザーが未接続でも成功を返す。
func (s *Server) handleTriggerEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg event.Message
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です: " + err.Error()})
			return
		}

		delivered := s.hub.Push(msg.UserID, msg.Event, msg.Data)
		c.JSON(http.StatusOK, gin.H{
			"message":   "イベントを配信しました",
			"delivered": delivered,
		})
	}
}
