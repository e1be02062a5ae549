// Package push はチャットメッセージのWebhookを受信し、
// 通知対象のユーザーとデバイスを解決してプッシュ通知を配信するサービス本体。
//
// 処理の流れ:
//  1. 変更キャプチャWebhookからチャットメッセージイベントを受信する
//  2. 顧客からのメッセージのみを通知対象として選別する
//  3. ビジネスのオーナーとチャット権限を持つ従業員を解決する
//  4. 各ユーザーの有効なデバイスを取得する
//  5. ワーカープールで全デバイスへ並列配信し、結果を集計する
//
// 無効になったデバイストークンは配信時に検出し、ベストエフォートで失効させる。
package push
