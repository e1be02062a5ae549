package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/chatpush/pkg/httpclient"
)

const (
	// defaultTokenURL はGoogleのOAuth2トークンエンドポイント。
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	// grantType はサービスアカウントの署名済みアサーション交換に使用するグラント種別。
	grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// tokenValidity はアサーションの有効期間。プロバイダの契約で1時間と定められている。
	tokenValidity = time.Hour
	// expiryLeeway はキャッシュしたトークンを期限切れ扱いにする余裕時間。
	expiryLeeway = time.Minute
)

// ServiceAccount はプロバイダが発行したサービスアカウント認証情報を表す。
// JSON blobとして設定から読み込まれる。秘密鍵はログに出力してはならない。
type ServiceAccount struct {
	// ProjectID はプロジェクトの一意識別子。
	ProjectID string `json:"project_id"`
	// ClientEmail はサービスアカウントのメールアドレス。アサーションの発行者になる。
	ClientEmail string `json:"client_email"`
	// PrivateKey はPEM形式のRSA秘密鍵。
	PrivateKey string `json:"private_key"`
	// TokenURI はトークンエンドポイントのURL。空の場合はデフォルトを使用する。
	TokenURI string `json:"token_uri"`
}

// ParseServiceAccount はサービスアカウントのJSON blobをパースする。
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("サービスアカウントJSONのパースに失敗: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, errors.New("サービスアカウントにclient_emailまたはprivate_keyがありません")
	}
	return &account, nil
}

// Token は短命のBearerトークンを表す。
type Token struct {
	// AccessToken はリクエストに付与するトークン値。
	AccessToken string
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
}

// TokenSource はサービスアカウントからBearerトークンを発行する。
// 直近の有効なトークンをプロセス全体でキャッシュし、期限切れ前は再利用する。
// 並行呼び出しに対して安全である。
type TokenSource struct {
	// account はトークン発行に使用するサービスアカウント。
	account *ServiceAccount
	// scope はトークンに要求するスコープ。
	scope string
	// tokenURL はトークンエンドポイントのURL。
	tokenURL string
	// client はトークンエンドポイントへのHTTPクライアント。
	client *httpclient.Client
	// mu はキャッシュへの並行アクセスを保護する。
	mu sync.Mutex
	// cached は直近に発行されたトークン。
	cached *Token
}

// Option はTokenSourceの生成時オプション。
type Option func(*TokenSource)

// WithTokenURL はトークンエンドポイントのURLを上書きする。テスト用。
func WithTokenURL(tokenURL string) Option {
	return func(s *TokenSource) {
		s.tokenURL = tokenURL
	}
}

// NewTokenSource は新しいTokenSourceを生成する。
// scopeには要求する認可スコープ（例: Firebaseメッセージングスコープ）を指定する。
func NewTokenSource(account *ServiceAccount, scope string, opts ...Option) *TokenSource {
	s := &TokenSource{
		account:  account,
		scope:    scope,
		tokenURL: account.TokenURI,
	}
	if s.tokenURL == "" {
		s.tokenURL = defaultTokenURL
	}
	for _, opt := range opts {
		opt(s)
	}
	s.client = httpclient.New(s.tokenURL)
	return s
}

// Token は有効なBearerトークンを返す。
// キャッシュされたトークンが有効期限の1分前まで残っている場合はそれを再利用し、
// そうでなければ新しいトークンを発行する。
func (s *TokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Until(s.cached.ExpiresAt) > expiryLeeway {
		return s.cached, nil
	}

	token, err := s.mint(ctx)
	if err != nil {
		return nil, err
	}
	s.cached = token
	return token, nil
}

// tokenResponse はトークンエンドポイントのJSONレスポンス。
type tokenResponse struct {
	// AccessToken は発行されたBearerトークン。
	AccessToken string `json:"access_token"`
	// ExpiresIn はトークンの有効期間（秒）。
	ExpiresIn int64 `json:"expires_in"`
}

// mint は署名済みアサーションを構築し、Bearerトークンと交換する。
// リトライは行わない。交換の失敗は呼び出し全体の失敗として扱われる。
func (s *TokenSource) mint(ctx context.Context) (*Token, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("秘密鍵のパースに失敗: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.account.ClientEmail,
		"scope": s.scope,
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenValidity).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("アサーションの署名に失敗: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("assertion", assertion)

	var resp tokenResponse
	if err := s.client.PostForm(ctx, "", form, &resp); err != nil {
		return nil, fmt.Errorf("トークン交換に失敗: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, errors.New("トークンエンドポイントがaccess_tokenを返しませんでした")
	}

	expiresIn := resp.ExpiresIn
	if expiresIn == 0 {
		expiresIn = int64(tokenValidity.Seconds())
	}

	return &Token{
		AccessToken: resp.AccessToken,
		ExpiresAt:   now.Add(time.Duration(expiresIn) * time.Second),
	}, nil
}
