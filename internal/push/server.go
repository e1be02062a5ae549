package push

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/chatpush/internal/registry"
	"github.com/nao1215/chatpush/pkg/googleauth"
	"github.com/nao1215/chatpush/pkg/middleware"
	"github.com/nao1215/chatpush/pkg/webhook"
)

// messagingScope はプッシュ送信トークンに要求する認可スコープ。
const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// 送信者の種類。emisor_tipo列の値に対応する。
const (
	// SenderCustomer は顧客からのメッセージを表す。
	SenderCustomer = "cliente"
	// SenderBusiness はビジネス側からのメッセージを表す。
	SenderBusiness = "negocio"
)

// ChatEvent は変更キャプチャトリガーが配信するチャットメッセージの行を表す。
// 呼び出しごとに一度だけ受信される不変のイベント。
type ChatEvent struct {
	// ID はメッセージの一意識別子。
	ID string `json:"id"`
	// CardID はメッセージが属するカードのID。
	CardID string `json:"tarjeta_id"`
	// BusinessID はメッセージの宛先ビジネスのID。
	BusinessID string `json:"negocio_id"`
	// SenderKind は送信者の種類（cliente / negocio）。
	SenderKind string `json:"emisor_tipo"`
	// SenderName は送信者の表示名。通知タイトルに使用する。
	SenderName string `json:"emisor_nombre"`
	// Message はメッセージ本文。
	Message string `json:"mensaje"`
	// CreatedAt はメッセージの作成日時。
	CreatedAt string `json:"created_at"`
}

// Server はチャットメッセージのWebhookを受信し、プッシュ通知を配信するHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// cfg はサービスの設定。
	cfg Config
	// account はプッシュプロバイダのサービスアカウント。未設定の場合はnil。
	account *googleauth.ServiceAccount
	// tokens はBearerトークンの発行元。未設定の場合はnil。
	tokens *googleauth.TokenSource
	// registry はデータストアへのクライアント。
	registry *registry.Client
	// dispatcher はデバイスへのプッシュ配信エンジン。
	dispatcher *Dispatcher
}

// NewServer は新しいプッシュ通知サーバーを生成する。
// サービスアカウントJSONが設定されている場合はパースし、トークン発行元を初期化する。
func NewServer(cfg Config) (*Server, error) {
	var (
		account *googleauth.ServiceAccount
		tokens  *googleauth.TokenSource
	)
	if cfg.ServiceAccountJSON != "" {
		parsed, err := googleauth.ParseServiceAccount([]byte(cfg.ServiceAccountJSON))
		if err != nil {
			return nil, fmt.Errorf("サービスアカウントの初期化に失敗: %w", err)
		}
		account = parsed

		var opts []googleauth.Option
		if cfg.TokenURL != "" {
			opts = append(opts, googleauth.WithTokenURL(cfg.TokenURL))
		}
		tokens = googleauth.NewTokenSource(account, messagingScope, opts...)
	}

	reg := registry.New(cfg.StoreURL, cfg.StoreServiceKey)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS())

	s := &Server{
		router:     router,
		port:       cfg.Port,
		cfg:        cfg,
		account:    account,
		tokens:     tokens,
		registry:   reg,
		dispatcher: NewDispatcher(cfg.FCMBaseURL, reg, cfg.FanoutWidth),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	hooks := s.router.Group("/hooks")
	hooks.Use(middleware.WebhookAuth(s.cfg.WebhookJWTSecret))
	{
		// チャットメッセージの変更キャプチャWebhook
		hooks.POST("/chat-message", s.handleChatMessage())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "chatpush"})
	})
}

// handleChatMessage はチャットメッセージイベントを処理するハンドラ。
// 顧客からのメッセージのみを対象に、通知対象のユーザーとデバイスを解決し、
// プッシュ通知を配信する。
func (s *Server) handleChatMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var env webhook.Envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		event, err := webhook.DecodeRecord[ChatEvent](&env)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		invocationID := uuid.New().String()
		log.Printf("[Push] 新しいチャットメッセージ: invocation=%s, message=%s, negocio=%s",
			invocationID, event.ID, event.BusinessID)

		// 顧客からのメッセージのみ通知する
		if event.SenderKind != SenderCustomer {
			log.Printf("[Push] ビジネス側のメッセージのため通知しない: invocation=%s", invocationID)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "No notification needed"})
			return
		}

		if s.tokens == nil {
			log.Printf("[Push] サービスアカウントが設定されていない: invocation=%s", invocationID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Firebase not configured"})
			return
		}

		ctx := c.Request.Context()

		business, err := s.registry.GetBusiness(ctx, event.BusinessID)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				log.Printf("[Push] ビジネスが見つからない: invocation=%s, negocio=%s", invocationID, event.BusinessID)
				c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
				return
			}
			log.Printf("[Push] ビジネス取得エラー: invocation=%s, error=%v", invocationID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		userIDs := s.resolveRecipients(ctx, business)
		log.Printf("[Push] 通知対象ユーザー: invocation=%s, count=%d", invocationID, len(userIDs))
		if len(userIDs) == 0 {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "No users to notify"})
			return
		}

		devices, err := s.registry.ListActiveDevices(ctx, userIDs)
		if err != nil {
			log.Printf("[Push] デバイス取得エラー: invocation=%s, error=%v", invocationID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if len(devices) == 0 {
			log.Printf("[Push] 有効なデバイスが無い: invocation=%s", invocationID)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "No FCM devices"})
			return
		}

		token, err := s.tokens.Token(ctx)
		if err != nil {
			log.Printf("[Push] トークン発行エラー: invocation=%s, error=%v", invocationID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		result := s.dispatcher.Dispatch(ctx, token.AccessToken, s.account.ProjectID, event, devices)
		log.Printf("[Push] 配信結果: invocation=%s, sent=%d, errors=%d, total=%d",
			invocationID, result.Sent, result.Errors, result.TotalDevices)

		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"sent":          result.Sent,
			"errors":        result.Errors,
			"total_devices": result.TotalDevices,
		})
	}
}
