package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HeaderKeyInternalAPIKey はサービス間の内部認証キーを運ぶHTTPヘッダーキー。
const HeaderKeyInternalAPIKey = "X-Internal-Api-Key"

// defaultTimeout はHTTPクライアントの既定タイムアウト。
const defaultTimeout = 30 * time.Second

// Client はサービス間通信用のHTTPクライアント。
// タイムアウトと内部認証キーの設定を持つ。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// secret はリクエストに付与する内部認証キー。空の場合は付与しない。
	secret string
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithTimeout はHTTPクライアントのタイムアウトを設定する。
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithInternalSecret は全リクエストに内部認証キーヘッダーを付与する。
func WithInternalSecret(secret string) Option {
	return func(c *Client) {
		c.secret = secret
	}
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON は指定URLにJSONボディでPOSTリクエストを送信する。
// resultがnilでない場合、レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, url string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, url, body, result)
}

// GetJSON は指定URLにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, url string, result any) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, url string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.secret != "" {
		req.Header.Set(HeaderKeyInternalAPIKey, c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTPエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}
