// Package registry はデバイスレジストリを含むデータストアへのアクセスを提供する。
//
// ビジネス・ユーザー・チャット権限・従業員・デバイスの各テーブルを
// PostgRESTインタフェース経由で読み取り、無効トークンの非活性化のみ書き込む。
package registry
