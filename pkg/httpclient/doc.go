// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 各サービスが他のサービスのAPIを呼び出す際に使用する。
// 内部認証キーの付与とタイムアウトの設定を一元化し、
// サービス間の通信パターンを統一する。
package httpclient
