package event

import (
	"encoding/json"
	"fmt"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeRecipeCreated はレシピが投稿されたことを表す。
	TypeRecipeCreated Type = "recipe_created"
	// TypeRecipeLiked はレシピにいいねが付いたことを表す。
	TypeRecipeLiked Type = "recipe_liked"
	// TypeChatMessage はチャットメッセージが届いたことを表す。
	TypeChatMessage Type = "chat_message"
	// TypeNotificationCreated は通知が作成されたことを表す。
	// リアルタイム配信サービスへのプッシュに使用する。
	TypeNotificationCreated Type = "notification_created"
	// TypeSystem はシステム起因の汎用イベントを表す。
	TypeSystem Type = "system"
)

// Message はサービス間イベントのワイヤーフォーマット。
// 内部エンドポイント POST /internal/trigger-event および
// POST /internal/gamification/event のリクエストボディに対応する。
type Message struct {
	// UserID はイベントの対象ユーザーID。この層では内容を検証しない。
	UserID string `json:"user_id" binding:"required"`
	// Event はイベントの種類。
	Event Type `json:"event" binding:"required"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
}

// NotificationData は通知作成イベント（trigger-event）のデータ。
type NotificationData struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// RecipeID は関連するレシピのID。レシピ起因のイベントでのみ設定される。
	RecipeID string `json:"recipe_id,omitempty"`
	// SenderID はイベントを引き起こしたユーザーのID。
	SenderID string `json:"sender_id,omitempty"`
}

// NewMessage は新しいイベントメッセージを生成する。
// dataにはイベント固有のデータ構造体を渡す。JSON形式にシリアライズされる。
func NewMessage(userID string, eventType Type, data any) (*Message, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	return &Message{
		UserID: userID,
		Event:  eventType,
		Data:   jsonData,
	}, nil
}

// DecodeData はイベントメッセージのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](m *Message) (*T, error) {
	var data T
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
