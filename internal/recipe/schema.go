package recipe

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。db/query.sql のクエリと同期すること。
const schema = `
CREATE TABLE IF NOT EXISTS recipes (
    -- レシピの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 投稿者のユーザーID
    user_id TEXT NOT NULL,
    -- レシピのタイトル
    title TEXT NOT NULL,
    -- レシピの説明文
    description TEXT NOT NULL DEFAULT '',
    -- 材料一覧（JSON文字列）
    ingredients TEXT NOT NULL DEFAULT '[]',
    -- 調理手順（JSON文字列）
    steps TEXT NOT NULL DEFAULT '[]',
    -- レシピの作成日時
    created_at DATETIME NOT NULL
);

-- 投稿者での検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_recipes_user_id ON recipes(user_id);

CREATE TABLE IF NOT EXISTS likes (
    -- いいね対象のレシピID
    recipe_id TEXT NOT NULL,
    -- いいねしたユーザーID
    user_id TEXT NOT NULL,
    -- いいねの作成日時
    created_at DATETIME NOT NULL,
    -- 同一ユーザーによる重複いいねを防ぐ
    PRIMARY KEY (recipe_id, user_id)
);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
