// チャットプッシュ通知サービスのエントリポイント。
// チャットメッセージの変更キャプチャWebhookを受信し、
// ビジネスのオーナーと権限を持つ従業員のデバイスへプッシュ通知を配信する。
package main

import (
	"log"

	"github.com/nao1215/chatpush/internal/push"
)

func main() {
	cfg := push.LoadConfig()

	server, err := push.NewServer(cfg)
	if err != nil {
		log.Fatalf("プッシュ通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("プッシュ通知サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("プッシュ通知サービスの起動に失敗: %v", err)
	}
}
