package notification

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	notificationdb "github.com/nao1215/recipeshare/internal/notification/db"
	"github.com/nao1215/recipeshare/pkg/event"
	"github.com/nao1215/recipeshare/pkg/middleware"
)

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// publisher はリアルタイム配信イベントの発行クライアント。
	publisher *event.Publisher
	// chatServiceURL はリアルタイム配信サービス（chat）のベースURL。
	chatServiceURL string
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "/data/notification.db"
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

	chatURL := os.Getenv("CHAT_URL")
	if chatURL == "" {
		chatURL = "http://localhost:8084"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:         router,
		port:           port,
		queries:        notificationdb.New(sqlDB),
		db:             sqlDB,
		publisher:      event.NewPublisher(internalSecret),
		chatServiceURL: chatURL,
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
		notifications := api.Group("/notifications")
		{
			// 通知一覧取得（ページネーション付き）
			notifications.GET("", s.handleList())
			// 未読通知一覧取得
			notifications.GET("/unread", s.handleListUnread())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
			// 通知の削除
			notifications.DELETE("/:id", s.handleDelete())
		}
	}

	// イベント受信（内部API - 他サービスのイベント発行クライアントから呼び出される）
	internal := s.router.Group("/internal")
	internal.Use(middleware.InternalAuth(internalSecret))
	{
		internal.POST("/trigger-event", s.handleTriggerEvent())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	})
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id"`
	// Type は通知の種類。
	Type string `json:"type"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Data はイベント固有の付加データ。
	Data json.RawMessage `json:"data,omitempty"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toNotificationResponse はDB行をJSONレスポンスに変換する。
func toNotificationResponse(n notificationdb.Notification) notificationResponse {
	resp := notificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead != 0,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.Data.Valid && json.Valid([]byte(n.Data.String)) {
		resp.Data = json.RawMessage(n.Data.String)
	}
	return resp
}

// toNotificationResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toNotificationResponses(notifications []notificationdb.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
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

// handleList は認証済みユーザーの通知一覧をページネーション付きで返すハンドラ。
// 作成日時の降順（新しい順）で返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		page, limit, err := parsePagination(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		total, err := s.queries.CountNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知件数の取得に失敗しました"})
			log.Printf("通知件数取得エラー: %v", err)
			return
		}

		notifications, err := s.queries.ListNotifications(c.Request.Context(), notificationdb.ListNotificationsParams{
			UserID: userID,
			Limit:  int64(limit),
			Offset: int64((page - 1) * limit),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		totalPages := (total + int64(limit) - 1) / int64(limit)
		c.JSON(http.StatusOK, gin.H{
			"notifications": toNotificationResponses(notifications),
			"total":         total,
			"page":          page,
			"limit":         limit,
			"total_pages":   totalPages,
		})
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.queries.ListUnreadNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			log.Printf("未読通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
//
// 参照は(通知ID, ユーザーID)でスコープされ、他ユーザーの通知は存在の有無に
// かかわらずNotFoundになる。既読済みの通知への再実行は成功し、状態は変わらない。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notificationID := c.Param("id")

		n, err := s.queries.GetNotification(c.Request.Context(), notificationdb.GetNotificationParams{
			ID:     notificationID,
			UserID: userID,
		})
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
			log.Printf("通知取得エラー: %v", err)
			return
		}

		if n.IsRead == 0 {
			if err := s.queries.MarkNotificationRead(c.Request.Context(), notificationdb.MarkNotificationReadParams{
				ID:     notificationID,
				UserID: userID,
			}); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
				log.Printf("通知既読処理エラー: %v", err)
				return
			}
			n.IsRead = 1
		}

		c.JSON(http.StatusOK, toNotificationResponse(n))
	}
}

// handleMarkAllAsRead は認証済みユーザーの全未読通知を既読にするハンドラ。
// 更新した件数を返す。未読が1件もなくても成功する。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		count, err := s.queries.MarkAllNotificationsRead(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			log.Printf("全通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "全通知を既読にしました",
			"count":   count,
		})
	}
}

// handleDelete は指定された通知を削除するハンドラ。
// 参照は(通知ID, ユーザーID)でスコープされ、対象がなければNotFoundになる。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notificationID := c.Param("id")

		rows, err := s.queries.DeleteNotification(c.Request.Context(), notificationdb.DeleteNotificationParams{
			ID:     notificationID,
			UserID: userID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の削除に失敗しました"})
			log.Printf("通知削除エラー: %v", err)
			return
		}
		if rows == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を削除しました"})
	}
}

// handleTriggerEvent はイベントを受信して通知を作成するハンドラ。
// 内部API（他サービスのイベント発行クライアントから呼び出される）。
//
// 通知の作成後、リアルタイム配信サービスへベストエフォートでプッシュイベントを
// 発行する。プッシュの失敗は通知作成の成否に影響しない。
func (s *Server) handleTriggerEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg event.Message
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		notificationType, ok := typeFromEvent(msg.Event)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("未対応のイベント種類です: %s", msg.Event)})
			return
		}

		if len(msg.Data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "イベントデータが必要です"})
			return
		}

		data, err := event.DecodeData[event.NotificationData](&msg)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("イベントデータが不正です: %v", err)})
			return
		}
		if data.Title == "" || data.Message == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "titleとmessageは必須です"})
			return
		}

		notificationID := uuid.New().String()
		createdAt := time.Now().UTC()

		if err := s.queries.CreateNotification(c.Request.Context(), notificationdb.CreateNotificationParams{
			ID:        notificationID,
			UserID:    msg.UserID,
			Type:      string(notificationType),
			Title:     data.Title,
			Message:   data.Message,
			Data:      sql.NullString{String: string(msg.Data), Valid: true},
			CreatedAt: createdAt,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			log.Printf("通知作成エラー: %v", err)
			return
		}

		// オンライン中のユーザーに通知を即時反映する（ベストエフォート）
		s.publisher.PublishTrigger(c.Request.Context(), s.chatServiceURL, msg.UserID, event.TypeNotificationCreated, notificationResponse{
			ID:        notificationID,
			UserID:    msg.UserID,
			Type:      string(notificationType),
			Title:     data.Title,
			Message:   data.Message,
			Data:      msg.Data,
			IsRead:    false,
			CreatedAt: createdAt.Format(time.RFC3339),
		})

		c.JSON(http.StatusCreated, gin.H{
			"id":      notificationID,
			"message": "通知を作成しました",
		})
	}
}
