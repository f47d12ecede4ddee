package notification

import "github.com/nao1215/recipeshare/pkg/event"

// Type は通知の種類を表す。
type Type string

const (
	// TypeRecipeCreated はレシピ投稿に関する通知。
	TypeRecipeCreated Type = "recipe_created"
	// TypeRecipeLiked はレシピへのいいねに関する通知。
	TypeRecipeLiked Type = "recipe_liked"
	// TypeChatMessage はチャットメッセージに関する通知。
	TypeChatMessage Type = "chat_message"
	// TypeSystem はシステムからのお知らせ通知。
	TypeSystem Type = "system"
)

// typeFromEvent はイベントの種類を通知の種類に対応付ける。
// 通知として扱えないイベントの場合はfalseを返す。
func typeFromEvent(e event.Type) (Type, bool) {
	switch e {
	case event.TypeRecipeCreated:
		return TypeRecipeCreated, true
	case event.TypeRecipeLiked:
		return TypeRecipeLiked, true
	case event.TypeChatMessage:
		return TypeChatMessage, true
	case event.TypeSystem:
		return TypeSystem, true
	default:
		return "", false
	}
}
