package user

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。db/query.sql のクエリと同期すること。
const schema = `
CREATE TABLE IF NOT EXISTS users (
    -- ユーザーの一意識別子
    id TEXT PRIMARY KEY,
    -- 表示名
    username TEXT NOT NULL,
    -- 自己紹介文
    bio TEXT NOT NULL DEFAULT '',
    -- プロフィールの作成日時
    created_at DATETIME NOT NULL,
    -- プロフィールの更新日時
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_scores (
    -- スコアの対象ユーザーID
    user_id TEXT PRIMARY KEY,
    -- ゲーミフィケーションの累計ポイント
    score INTEGER NOT NULL DEFAULT 0,
    -- スコアの最終更新日時
    updated_at DATETIME NOT NULL
);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
