// Package webhook はデータベースの変更キャプチャWebhookのペイロードを扱う。
//
// トリガーが配信する {type, table, schema, record, old_record} 形式の
// エンベロープを型安全にデコードする。
package webhook
