// Package event はサービス間で送受信するイベントの定義と発行を提供する。
//
// イベントは「あるユーザーに関して何かが起きた」ことを表す通知であり、
// 通知サービス・ユーザーサービス（ゲーミフィケーション）・チャットサービスの
// 内部エンドポイントに対してHTTP POSTで配送される。
// 配送はベストエフォートであり、失敗してもイベント発行元の処理は成功する。
package event
