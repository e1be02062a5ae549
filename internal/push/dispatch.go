package push

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nao1215/chatpush/internal/registry"
	"github.com/nao1215/chatpush/pkg/httpclient"
)

const (
	// maxBodyRunes は通知本文の最大文字数。超過分は切り詰める。
	maxBodyRunes = 100
	// notificationChannel はAndroidの通知チャネルID。
	notificationChannel = "robertdarin_notifications"
)

// DispatchResult は一回の配信の集計結果。
type DispatchResult struct {
	// Sent は送信に成功したデバイス数。
	Sent int64
	// Errors は送信に失敗したデバイス数。
	Errors int64
	// TotalDevices は配信対象のデバイス総数。
	TotalDevices int
}

// Dispatcher はデバイスへのプッシュ通知をワーカープールで並列配信する。
type Dispatcher struct {
	// fcmBaseURL はプッシュAPIのベースURL。
	fcmBaseURL string
	// registry は無効トークンの失効に使うデータストアクライアント。
	registry *registry.Client
	// width は並列ワーカー数。
	width int
}

// NewDispatcher は新しいDispatcherを生成する。widthが1未満の場合は1に丸める。
func NewDispatcher(fcmBaseURL string, reg *registry.Client, width int) *Dispatcher {
	if width < 1 {
		width = 1
	}
	return &Dispatcher{
		fcmBaseURL: fcmBaseURL,
		registry:   reg,
		width:      width,
	}
}

// fcmRequest はメッセージ送信APIのリクエストボディ。
type fcmRequest struct {
	// Message は送信するメッセージ。
	Message fcmMessage `json:"message"`
}

// fcmMessage は単一デバイス宛のメッセージ。
type fcmMessage struct {
	// Token は宛先デバイスの登録トークン。
	Token string `json:"token"`
	// Notification は表示用の通知部。
	Notification fcmNotification `json:"notification"`
	// Data はアプリが受け取る任意のキー値データ。
	Data map[string]string `json:"data"`
	// Android はAndroid固有の設定。
	Android fcmAndroid `json:"android"`
}

// fcmNotification は通知のタイトルと本文。
type fcmNotification struct {
	// Title は通知タイトル。
	Title string `json:"title"`
	// Body は通知本文。
	Body string `json:"body"`
}

// fcmAndroid はAndroid固有の配信設定。
type fcmAndroid struct {
	// Priority は配信優先度。
	Priority string `json:"priority"`
	// Notification はAndroid通知の表示設定。
	Notification fcmAndroidNotification `json:"notification"`
}

// fcmAndroidNotification はAndroid通知チャネルと表示の設定。
type fcmAndroidNotification struct {
	// ChannelID は通知チャネルのID。
	ChannelID string `json:"channel_id"`
	// Sound は通知音。
	Sound string `json:"sound"`
	// Icon は通知アイコン。
	Icon string `json:"icon"`
}

// Dispatch はイベントをすべてのデバイスへ並列配信し、結果を集計して返す。
// 個々のデバイスの失敗は他のデバイスへの配信に影響しない。
func (d *Dispatcher) Dispatch(ctx context.Context, accessToken, projectID string, event *ChatEvent, devices []registry.Device) DispatchResult {
	client := httpclient.New(d.fcmBaseURL,
		httpclient.WithHeader("Authorization", "Bearer "+accessToken),
	)
	path := fmt.Sprintf("/v1/projects/%s/messages:send", projectID)

	var sent, failed atomic.Int64
	jobs := make(chan registry.Device)
	var wg sync.WaitGroup

	for i := 0; i < d.width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for device := range jobs {
				if err := d.sendOne(ctx, client, path, event, device); err != nil {
					log.Printf("[Push] デバイスへの送信に失敗: token=%s..., error=%v", head(device.Token, 8), err)
					failed.Add(1)
					continue
				}
				sent.Add(1)
			}
		}()
	}

	for _, device := range devices {
		jobs <- device
	}
	close(jobs)
	wg.Wait()

	return DispatchResult{
		Sent:         sent.Load(),
		Errors:       failed.Load(),
		TotalDevices: len(devices),
	}
}

// sendOne は単一デバイスへメッセージを送信する。
// トークンが恒久的に無効な場合はデバイスを失効させる（失敗しても送信結果には影響しない）。
func (d *Dispatcher) sendOne(ctx context.Context, client *httpclient.Client, path string, event *ChatEvent, device registry.Device) error {
	req := fcmRequest{
		Message: fcmMessage{
			Token: device.Token,
			Notification: fcmNotification{
				Title: "💬 " + event.SenderName,
				Body:  truncateMessage(event.Message),
			},
			Data: map[string]string{
				"type":         "tarjeta_chat",
				"tarjeta_id":   event.CardID,
				"negocio_id":   event.BusinessID,
				"message_id":   event.ID,
				"route":        "/tarjetas/chat",
				"click_action": "FLUTTER_NOTIFICATION_CLICK",
			},
			Android: fcmAndroid{
				Priority: "high",
				Notification: fcmAndroidNotification{
					ChannelID: notificationChannel,
					Sound:     "default",
					Icon:      "ic_notification",
				},
			},
		},
	}

	if err := client.PostJSON(ctx, path, req, nil); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && isPermanentlyInvalid(statusErr.Body) {
			if derr := d.registry.DeactivateDevice(ctx, device.Token); derr != nil {
				log.Printf("[Push] デバイスの失効に失敗: token=%s..., error=%v", head(device.Token, 8), derr)
			} else {
				log.Printf("[Push] 無効なデバイスを失効した: token=%s...", head(device.Token, 8))
			}
		}
		return err
	}
	return nil
}

// isPermanentlyInvalid はエラーボディが恒久的に無効なトークンを示すか判定する。
func isPermanentlyInvalid(body string) bool {
	return strings.Contains(body, "UNREGISTERED") || strings.Contains(body, "INVALID_ARGUMENT")
}

// truncateMessage は通知本文を最大文字数に切り詰める。
func truncateMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= maxBodyRunes {
		return message
	}
	return string(runes[:maxBodyRunes]) + "..."
}

// head は文字列の先頭n文字を返す。ログにトークン全体を出さないために使う。
func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
