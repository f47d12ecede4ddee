package gateway

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/recipeshare/pkg/middleware"
)

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// table は起動時に構築されるプレフィックスルーティング表。
	table *RouteTable
	// httpClient は内部サービスへの転送に使用するHTTPクライアント。
	// タイムアウトは起動時に設定され、ハングした転送先が他のリクエストを
	// 巻き込まないようにする。
	httpClient *http.Client
}

// NewServer は新しいGatewayサーバーを生成する。
// ルートテーブルは環境変数から構築され、重複プレフィックスは起動エラーになる。
func NewServer(port string) (*Server, error) {
	routes := []Route{
		{
			PathPrefix: "/notifications",
			Host:       getEnvOr("NOTIFICATION_SERVICE_HOST", "localhost"),
			Port:       getEnvIntOr("NOTIFICATION_SERVICE_PORT", 8086),
		},
		{
			PathPrefix: "/users",
			Host:       getEnvOr("USER_SERVICE_HOST", "localhost"),
			Port:       getEnvIntOr("USER_SERVICE_PORT", 8082),
		},
		{
			PathPrefix: "/recipes",
			Host:       getEnvOr("RECIPE_SERVICE_HOST", "localhost"),
			Port:       getEnvIntOr("RECIPE_SERVICE_PORT", 8083),
		},
		{
			PathPrefix: "/chat",
			Host:       getEnvOr("CHAT_SERVICE_HOST", "localhost"),
			Port:       getEnvIntOr("CHAT_SERVICE_PORT", 8084),
		},
	}

	table, err := NewRouteTable(routes)
	if err != nil {
		return nil, fmt.Errorf("ルートテーブルの構築に失敗: %w", err)
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))

	s := &Server{
		router: router,
		port:   port,
		table:  table,
		httpClient: &http.Client{
			Timeout: getEnvDurationOr("GATEWAY_UPSTREAM_TIMEOUT", 30*time.Second),
		},
	}
	s.setupRoutes()

	return s, nil
}

// newServerWithTable はルートテーブルとHTTPクライアントを指定してサーバーを生成する。
// テストから使用する。
func newServerWithTable(table *RouteTable, httpClient *http.Client) *Server {
	router := gin.New()
	s := &Server{
		router:     router,
		port:       "0",
		table:      table,
		httpClient: httpClient,
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// ヘルスチェック以外の全パスはプレフィックスルーティングで内部サービスに転送する。
func (s *Server) setupRoutes() {
	// ヘルスチェック（ゲートウェイ自身のもの。各サービスは自分で応答する）
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	s.router.NoRoute(s.handleProxy())
}

// handleProxy はルートテーブルに基づいてリクエストを内部サービスに転送するハンドラを返す。
//
// マッチしたプレフィックスをパスから1回だけ取り除き、メソッド・ボディ・
// ヘッダー・クエリ文字列をそのまま転送する。レスポンスはバッファリングせず
// ストリームで中継する。転送先に到達できない場合は502、タイムアウトの
// 場合は504を返す。リトライは行わない。
func (s *Server) handleProxy() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, rest, ok := s.table.Match(c.Request.URL.Path)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "ルーティング先が見つかりません"})
			return
		}

		proxyURL := fmt.Sprintf("http://%s:%d%s", route.Host, route.Port, rest)
		if c.Request.URL.RawQuery != "" {
			proxyURL += "?" + c.Request.URL.RawQuery
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, proxyURL, c.Request.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロキシリクエストの作成に失敗しました"})
			return
		}
		req.Header = c.Request.Header.Clone()

		resp, err := s.httpClient.Do(req)
		if err != nil {
			status := http.StatusBadGateway
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				status = http.StatusGatewayTimeout
			}
			log.Printf("プロキシエラー: url=%s, error=%v", proxyURL, err)
			c.JSON(status, gin.H{"error": "内部サービスとの通信に失敗しました"})
			return
		}
		defer resp.Body.Close()

		// ステータスコード・ヘッダー・ボディをそのまま中継する
		header := c.Writer.Header()
		for key, values := range resp.Header {
			for _, v := range values {
				header.Add(key, v)
			}
		}
		c.Status(resp.StatusCode)
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			// ヘッダー送信後はエラーレスポンスを返せないためログのみ
			log.Printf("プロキシレスポンスの中継に失敗: url=%s, error=%v", proxyURL, err)
		}
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvIntOr は整数型の環境変数を取得し、未設定または不正な場合はデフォルト値を返す。
func getEnvIntOr(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("環境変数 %s の値 %q が不正なためデフォルト値 %d を使用します", key, v, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDurationOr は時間型の環境変数を取得し、未設定または不正な場合はデフォルト値を返す。
func getEnvDurationOr(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("環境変数 %s の値 %q が不正なためデフォルト値 %s を使用します", key, v, defaultValue)
		return defaultValue
	}
	return d
}
