package push

import (
	"os"
	"strconv"
)

// Config はプッシュ通知サービスの設定。
// 環境変数から一度だけ読み込み、NewServerに明示的に渡す。
// サービスアカウントやストアのキーは秘密情報であり、ログに出力してはならない。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// ServiceAccountJSON はプッシュプロバイダのサービスアカウントJSON blob。
	// 空の場合、Webhookは設定エラーを返す。
	ServiceAccountJSON string
	// StoreURL はデータストアのベースURL。
	StoreURL string
	// StoreServiceKey はデータストアの特権アクセスキー。
	StoreServiceKey string
	// WebhookJWTSecret はWebhook呼び出しのJWT検証シークレット。空の場合は検証しない。
	WebhookJWTSecret string
	// FCMBaseURL はプッシュエンドポイントのベースURL。テストで上書きする。
	FCMBaseURL string
	// TokenURL はトークンエンドポイントのURL。空の場合はサービスアカウントの設定に従う。
	TokenURL string
	// FanoutWidth はデバイスへの並行配信数の上限。
	FanoutWidth int
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() Config {
	return Config{
		Port:               getString("PORT", "8080"),
		ServiceAccountJSON: os.Getenv("FIREBASE_SERVICE_ACCOUNT"),
		StoreURL:           os.Getenv("SUPABASE_URL"),
		StoreServiceKey:    os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		WebhookJWTSecret:   os.Getenv("WEBHOOK_JWT_SECRET"),
		FCMBaseURL:         getString("FCM_BASE_URL", "https://fcm.googleapis.com"),
		TokenURL:           os.Getenv("GOOGLE_TOKEN_URL"),
		FanoutWidth:        getInt("FANOUT_WIDTH", 4),
	}
}

// getString は環境変数を取得する。未設定の場合はデフォルト値を返す。
func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getInt は整数の環境変数を取得する。未設定または不正な場合はデフォルト値を返す。
func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
