package user

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	userdb "github.com/nao1215/recipeshare/internal/user/db"
	"github.com/nao1215/recipeshare/pkg/event"
	"github.com/nao1215/recipeshare/pkg/middleware"
)

// pointsForEvent はゲーミフィケーションイベントの種類を加算ポイントに対応付ける。
// ポイント対象外のイベントの場合はfalseを返す。
func pointsForEvent(e event.Type) (int64, bool) {
	switch e {
	case event.TypeRecipeCreated:
		return 10, true
	case event.TypeRecipeLiked:
		return 2, true
	default:
		return 0, false
	}
}

// Server はユーザーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *userdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewServer は新しいユーザーサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "/data/user.db"
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

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		port:    port,
		queries: userdb.New(sqlDB),
		db:      sqlDB,
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
		users := api.Group("/users")
		{
			// 自分のプロフィールの作成・更新
			users.PUT("/me", s.handleUpsertProfile())
			// プロフィール取得（スコア付き）
			users.GET("/:id", s.handleGetUser())
			// スコアのみ取得
			users.GET("/:id/score", s.handleGetScore())
		}
	}

	// ゲーミフィケーションイベント受信（内部API - 他サービスのイベント発行クライアントから呼び出される）
	internal := s.router.Group("/internal")
	internal.Use(middleware.InternalAuth(internalSecret))
	{
		internal.POST("/gamification/event", s.handleGamificationEvent())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})
}

// upsertProfileRequest はプロフィール作成・更新のリクエストボディ。
type upsertProfileRequest struct {
	// Username は表示名。
	Username string `json:"username" binding:"required"`
	// Bio は自己紹介文。
	Bio string `json:"bio"`
}

// userResponse はユーザープロフィールのJSONレスポンス構造。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Username は表示名。
	Username string `json:"username"`
	// Bio は自己紹介文。
	Bio string `json:"bio"`
	// Score はゲーミフィケーションの累計ポイント。
	Score int64 `json:"score"`
	// CreatedAt はプロフィールの作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// handleUpsertProfile は認証済みユーザー自身のプロフィールを作成・更新するハンドラ。
func (s *Server) handleUpsertProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req upsertProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です: " + err.Error()})
			return
		}

		now := time.Now().UTC()
		err := s.queries.UpsertUser(c.Request.Context(), userdb.UpsertUserParams{
			ID:        userID,
			Username:  req.Username,
			Bio:       req.Bio,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			log.Printf("プロフィールの保存に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの保存に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "プロフィールを保存しました", "id": userID})
	}
}

// handleGetUser はユーザープロフィールをスコア付きで返すハンドラ。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		u, err := s.queries.GetUser(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			log.Printf("ユーザーの取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, userResponse{
			ID:        u.ID,
			Username:  u.Username,
			Bio:       u.Bio,
			Score:     s.currentScore(c, id),
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		})
	}
}

// handleGetScore はユーザーのスコアのみを返すハンドラ。
// スコア行が未作成のユーザーは0として扱う。
func (s *Server) handleGetScore() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		c.JSON(http.StatusOK, gin.H{
			"user_id": id,
			"score":   s.currentScore(c, id),
		})
	}
}

// currentScore はユーザーの累計ポイントを返す。スコア行が存在しない場合は0を返す。
func (s *Server) currentScore(c *gin.Context, userID string) int64 {
	score, err := s.queries.GetScore(c.Request.Context(), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0
	}
	if err != nil {
		log.Printf("スコアの取得に失敗: %v", err)
		return 0
	}
	return score.Score
}

// handleGamificationEvent はゲーミフィケーションイベントを受信し、
// イベント種類に応じたポイントをユーザーのスコアに加算するハンドラ。
func (s *Server) handleGamificationEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg event.Message
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です: " + err.Error()})
			return
		}

		points, ok := pointsForEvent(msg.Event)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ポイント対象外のイベントです: %s", msg.Event)})
			return
		}

		err := s.queries.AddScore(c.Request.Context(), userdb.AddScoreParams{
			UserID:    msg.UserID,
			Score:     points,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			log.Printf("スコアの加算に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "スコアの加算に失敗しました"})
			return
		}

		log.Printf("スコアを加算しました: user_id=%s event=%s points=%d", msg.UserID, msg.Event, points)
		c.JSON(http.StatusOK, gin.H{
			"message": "スコアを加算しました",
			"user_id": msg.UserID,
			"points":  points,
		})
	}
}
