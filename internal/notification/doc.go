// Package notification は通知サービスの内部実装を提供する。
//
// 他サービスが発行するイベントを内部エンドポイントで受信して通知を作成し、
// ユーザーごとの一覧取得（ページネーション付き）・既読管理・削除を行う。
// 通知は未読で作成され、既読化は一方向（既読から未読には戻らない）。
// 全ての参照・更新は所有ユーザーでスコープされ、他ユーザーの通知は
// 存在自体が見えない（常にNotFound）。
package notification
