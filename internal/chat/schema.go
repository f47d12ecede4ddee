package chat

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。db/query.sql のクエリと同期すること。
const schema = `
CREATE TABLE IF NOT EXISTS messages (
    -- メッセージの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 送信者のユーザーID
    sender_id TEXT NOT NULL,
    -- 受信者のユーザーID
    recipient_id TEXT NOT NULL,
    -- メッセージ本文
    body TEXT NOT NULL,
    -- メッセージの作成日時
    created_at DATETIME NOT NULL
);

-- 会話の検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, recipient_id);
CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, sender_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
