package event

import (
	"context"
	"log"
	"time"

	"github.com/nao1215/recipeshare/pkg/httpclient"
)

// triggerEventPath は通知・リアルタイム配信イベントを受け付ける内部エンドポイントのパス。
const triggerEventPath = "/internal/trigger-event"

// gamificationEventPath はゲーミフィケーションイベントを受け付ける内部エンドポイントのパス。
const gamificationEventPath = "/internal/gamification/event"

// Publisher は他サービスの内部エンドポイントへイベントを発行するクライアント。
//
// 発行はファイアアンドフォーゲットであり、配送失敗（接続エラー・非2xx応答）は
// ログに記録するだけで呼び出し元にエラーを返さない。リトライや永続化は行わず、
// 高々1回のベストエフォート配送のみを保証する。
type Publisher struct {
	// client は内部認証ヘッダー付きのHTTPクライアント。
	client *httpclient.Client
}

// NewPublisher は新しいイベント発行クライアントを生成する。
// secretにはサービス間共有の内部認証キーを指定する。
func NewPublisher(secret string) *Publisher {
	return &Publisher{
		client: httpclient.New(
			httpclient.WithTimeout(10*time.Second),
			httpclient.WithInternalSecret(secret),
		),
	}
}

// PublishTrigger は対象サービスの /internal/trigger-event へイベントを発行する。
// 通知の作成やリアルタイムプッシュのトリガーに使用する。
func (p *Publisher) PublishTrigger(ctx context.Context, targetBaseURL, userID string, eventType Type, data any) {
	p.publish(ctx, targetBaseURL+triggerEventPath, userID, eventType, data)
}

// PublishGamification は対象サービスの /internal/gamification/event へイベントを発行する。
// スコア加算のトリガーに使用する。
func (p *Publisher) PublishGamification(ctx context.Context, targetBaseURL, userID string, eventType Type, data any) {
	p.publish(ctx, targetBaseURL+gamificationEventPath, userID, eventType, data)
}

// publish はイベントメッセージを構築して送信する共通処理。
// 失敗はログに記録し、呼び出し元には伝播しない。
//
// 元リクエストのキャンセル（クライアント切断）で送信中の内部呼び出しが
// 中断されないよう、キャンセルを引き継がないコンテキストで送信する。
// タイムアウトはクライアント側の設定で制限される。
func (p *Publisher) publish(ctx context.Context, url, userID string, eventType Type, data any) {
	msg, err := NewMessage(userID, eventType, data)
	if err != nil {
		log.Printf("イベントメッセージの構築に失敗: event=%s, error=%v", eventType, err)
		return
	}

	if err := p.client.PostJSON(context.WithoutCancel(ctx), url, msg, nil); err != nil {
		log.Printf("イベントの配送に失敗: url=%s, event=%s, error=%v", url, eventType, err)
	}
}
