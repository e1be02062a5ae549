// Package httpclient は外部サービスとのHTTP通信を行うクライアントを提供する。
//
// データストア（PostgREST）の読み書き、OAuth2トークンエンドポイントとの交換、
// FCMエンドポイントへのプッシュ送信など、外部APIの呼び出しパターンを統一する。
package httpclient
