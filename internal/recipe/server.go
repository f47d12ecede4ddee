package recipe

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

	recipedb "github.com/nao1215/recipeshare/internal/recipe/db"
	"github.com/nao1215/recipeshare/pkg/event"
	"github.com/nao1215/recipeshare/pkg/middleware"
)

// Server はレシピサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *recipedb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// publisher はイベント発行クライアント。
	publisher *event.Publisher
	// notificationServiceURL は通知サービスのベースURL。
	notificationServiceURL string
	// userServiceURL はユーザーサービス（ゲーミフィケーション）のベースURL。
	userServiceURL string
}

// NewServer は新しいレシピサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "/data/recipe.db"
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

	userURL := os.Getenv("USER_URL")
	if userURL == "" {
		userURL = "http://localhost:8082"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:                 router,
		port:                   port,
		queries:                recipedb.New(sqlDB),
		db:                     sqlDB,
		publisher:              event.NewPublisher(internalSecret),
		notificationServiceURL: notificationURL,
		userServiceURL:         userURL,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	{
		recipes := api.Group("/recipes")
		{
			// レシピの投稿
			recipes.POST("", s.handleCreate())
			// レシピ一覧取得（ページネーション付き）
			recipes.GET("", s.handleList())
			// レシピの取得
			recipes.GET("/:id", s.handleGet())
			// レシピの削除（投稿者のみ）
			recipes.DELETE("/:id", s.handleDelete())
			// レシピへのいいね
			recipes.POST("/:id/like", s.handleLike())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "recipe"})
	})
}

// createRecipeRequest はレシピ投稿のリクエストボディ。
type createRecipeRequest struct {
	// Title はレシピのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はレシピの説明文。
	Description string `json:"description"`
	// Ingredients は材料一覧。
	Ingredients []string `json:"ingredients"`
	// Steps は調理手順。
	Steps []string `json:"steps"`
}

// recipeResponse はレシピのJSONレスポンス構造。
type recipeResponse struct {
	// ID はレシピの一意識別子。
	ID string `json:"id"`
	// UserID は投稿者のユーザーID。
	UserID string `json:"user_id"`
	// Title はレシピのタイトル。
	Title string `json:"title"`
	// Description はレシピの説明文。
	Description string `json:"description"`
	// Ingredients は材料一覧。
	Ingredients []string `json:"ingredients"`
	// Steps は調理手順。
	Steps []string `json:"steps"`
	// Likes はいいねの数。
	Likes int64 `json:"likes"`
	// CreatedAt はレシピの作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toRecipeResponse はDB行をJSONレスポンスに変換する。
func toRecipeResponse(r recipedb.Recipe, likes int64) recipeResponse {
	resp := recipeResponse{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Ingredients: []string{},
		Steps:       []string{},
		Likes:       likes,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	// 材料・手順はJSON文字列として保存しているため復元する
	if err := json.Unmarshal([]byte(r.Ingredients), &resp.Ingredients); err != nil {
		log.Printf("材料一覧の復元に失敗: recipe_id=%s, error=%v", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Steps), &resp.Steps); err != nil {
		log.Printf("調理手順の復元に失敗: recipe_id=%s, error=%v", r.ID, err)
	}
	return resp
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

// handleCreate はレシピを投稿するハンドラ。
// 投稿成功後、投稿者へのポイント加算イベントを発行する。イベントの配信失敗は
// レシピ投稿の成否に影響しない。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createRecipeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です: " + err.Error()})
			return
		}

		ingredients, err := json.Marshal(req.Ingredients)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "材料一覧が不正です"})
			return
		}
		steps, err := json.Marshal(req.Steps)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "調理手順が不正です"})
			return
		}

		recipeID := uuid.New().String()
		err = s.queries.CreateRecipe(c.Request.Context(), recipedb.CreateRecipeParams{
			ID:          recipeID,
			UserID:      userID,
			Title:       req.Title,
			Description: req.Description,
			Ingredients: string(ingredients),
			Steps:       string(steps),
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			log.Printf("レシピの作成に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レシピの作成に失敗しました"})
			return
		}

		// 投稿者へのポイント加算（ベストエフォート）
		s.publisher.PublishGamification(c.Request.Context(), s.userServiceURL, userID, event.TypeRecipeCreated, nil)

		c.JSON(http.StatusCreated, gin.H{"id": recipeID, "message": "レシピを投稿しました"})
	}
}

// handleList はレシピ一覧をページネーション付きで返すハンドラ。
// 作成日時の降順（新しい順）で返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, err := parsePagination(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		recipes, err := s.queries.ListRecipes(c.Request.Context(), recipedb.ListRecipesParams{
			Limit:  int64(limit),
			Offset: int64((page - 1) * limit),
		})
		if err != nil {
			log.Printf("レシピ一覧の取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レシピ一覧の取得に失敗しました"})
			return
		}

		total, err := s.queries.CountRecipes(c.Request.Context())
		if err != nil {
			log.Printf("レシピ数の取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レシピ一覧の取得に失敗しました"})
			return
		}

		responses := make([]recipeResponse, 0, len(recipes))
		for _, r := range recipes {
			likes, err := s.queries.CountLikes(c.Request.Context(), r.ID)
			if err != nil {
				log.Printf("いいね数の取得に失敗: recipe_id=%s, error=%v", r.ID, err)
			}
			responses = append(responses, toRecipeResponse(r, likes))
		}

		c.JSON(http.StatusOK, gin.H{
			"recipes":     responses,
			"total":       total,
			"page":        page,
			"limit":       limit,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
		})
	}
}

// handleGet はレシピを1件取得するハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		r, err := s.queries.GetRecipe(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レシピが見つかりません"})
			return
		}
		if err != nil {
			log.Printf("レシピの取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レシピの取得に失敗しました"})
			return
		}

		likes, err := s.queries.CountLikes(c.Request.Context(), id)
		if err != nil {
			log.Printf("いいね数の取得に失敗: recipe_id=%s, error=%v", id, err)
		}

		c.JSON(http.StatusOK, toRecipeResponse(r, likes))
	}
}

// handleDelete はレシピを削除するハンドラ。削除できるのは投稿者のみ。
// 他ユーザーのレシピは存在自体を隠すため、常にNotFoundを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		rows, err := s.queries.DeleteRecipe(c.Request.Context(), recipedb.DeleteRecipeParams{
			ID:     c.Param("id"),
			UserID: userID,
		})
		if err != nil {
			log.Printf("レシピの削除に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レシピの削除に失敗しました"})
			return
		}
		if rows == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "レシピが見つかりません"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "レシピを削除しました"})
	}
}

// handleLike はレシピにいいねを付けるハンドラ。
// 同一ユーザーによる重複いいねは無視される。新規のいいねの場合のみ、
// 投稿者への通知イベントとポイント加算イベントを発行する。いずれの
// イベントも配信失敗はいいねの成否に影響しない。
func (s *Server) handleLike() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		recipeID := c.Param("id")
		r, err := s.queries.GetRecipe(c.Request.Context(), recipeID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レシピが見つかりません"})
			return
		}
		if err != nil {
			log.Printf("レシピの取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねに失敗しました"})
			return
		}

		rows, err := s.queries.CreateLike(c.Request.Context(), recipedb.CreateLikeParams{
			RecipeID:  recipeID,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			log.Printf("いいねの保存に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねに失敗しました"})
			return
		}

		// 新規のいいねの場合のみイベントを発行する。自分のレシピへのいいねは通知しない
		if rows > 0 && r.UserID != userID {
			s.publisher.PublishTrigger(c.Request.Context(), s.notificationServiceURL, r.UserID, event.TypeRecipeLiked, event.NotificationData{
				Title:    "レシピにいいねが付きました",
				Message:  fmt.Sprintf("「%s」にいいねが付きました", r.Title),
				RecipeID: recipeID,
				SenderID: userID,
			})
			s.publisher.PublishGamification(c.Request.Context(), s.userServiceURL, r.UserID, event.TypeRecipeLiked, nil)
		}

		c.JSON(http.StatusOK, gin.H{"message": "いいねしました"})
	}
}
