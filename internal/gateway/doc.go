// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、パスプレフィックスに基づいて
// リクエストを内部サービスに転送する。ルートテーブルは起動時に一度だけ
// 構築され、プロセスの生存期間中は不変である。ゲートウェイ自身は
// ルートテーブル以外の状態を持たない。
package gateway
