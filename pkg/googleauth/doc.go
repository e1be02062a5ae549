// Package googleauth はサービスアカウント認証情報からBearerトークンを発行する。
//
// RS256で署名したアサーションをJWT bearerグラントでトークンエンドポイントと交換する、
// サーバー間認証の標準フローを実装する。発行したトークンは有効期限までキャッシュされる。
package googleauth
