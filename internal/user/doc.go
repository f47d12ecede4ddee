// Package user はユーザープロフィールとゲーミフィケーションスコアを管理する
// マイクロサービス。他サービスが発行するゲーミフィケーションイベントを内部API
// で受信し、イベント種類に応じたポイントをユーザーのスコアに加算する。
package user
