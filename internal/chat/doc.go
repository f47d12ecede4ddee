// Package chat はダイレクトメッセージとリアルタイム配信を担うマイクロサービス。
// ユーザーごとのWebSocket接続をハブで管理し、メッセージの保存と同時に受信者の
// 接続へプッシュする。他サービスからの内部イベントも接続中のユーザーへ中継する。
package chat
