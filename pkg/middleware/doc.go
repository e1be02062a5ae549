// Package middleware はGinベースのWebhookエンドポイントで使用する共通ミドルウェアを提供する。
//
// Webhook呼び出しのJWT検証、パニックリカバリ、CORS設定を含む。
package middleware
