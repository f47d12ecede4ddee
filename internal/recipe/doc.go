// Package recipe はレシピの投稿・閲覧・いいねを管理するマイクロサービス。
// レシピの投稿といいねの際に、通知サービスとユーザーサービスへイベントを
// 発行する。イベントの配信失敗はレシピ操作の成否に影響しない。
package recipe
