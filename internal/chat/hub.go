package chat

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nao1215/recipeshare/pkg/event"
)

// pushFrame はWebSocket接続へ送信するフレームの構造。
type pushFrame struct {
	// Event はイベントの種類。
	Event event.Type `json:"event"`
	// Data はイベント固有のデータ。
	Data json.RawMessage `json:"data,omitempty"`
}

// Hub はユーザーIDをキーとしてWebSocket接続を管理する。
// 同一ユーザーの複数接続（複数タブ・複数端末）を許容する。
type Hub struct {
	// mu はconnsへのアクセスを保護する。接続への書き込みもこのロックで
	// 直列化し、gorilla/websocketの並行書き込み制限を満たす。
	mu sync.Mutex
	// conns はユーザーIDごとの接続集合。
	conns map[string]map[*websocket.Conn]struct{}
}

// NewHub は新しい接続ハブを生成する。
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Register はユーザーの接続をハブに登録する。
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
	log.Printf("WebSocket接続を登録: user_id=%s, 接続数=%d", userID, len(h.conns[userID]))
}

// Unregister はユーザーの接続をハブから削除する。
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Push は対象ユーザーの全接続へイベントフレームを送信し、配信した接続数を返す。
// 接続が存在しない場合は0を返す。書き込みに失敗した接続はハブから削除する。
func (h *Hub) Push(userID string, eventType event.Type, data json.RawMessage) int {
	frame, err := json.Marshal(pushFrame{Event: eventType, Data: data})
	if err != nil {
		log.Printf("プッシュフレームの構築に失敗: %v", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for conn := range h.conns[userID] {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Printf("WebSocket書き込みに失敗: user_id=%s, error=%v", userID, err)
			conn.Close()
			delete(h.conns[userID], conn)
			continue
		}
		delivered++
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
	return delivered
}
