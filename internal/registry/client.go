package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/chatpush/pkg/httpclient"
)

// ErrNotFound は対象のレコードがデータストアに存在しないことを表すエラー。
var ErrNotFound = errors.New("レコードが見つかりません")

// Client はデータストア（PostgRESTインタフェース）へのクライアント。
// 特権サービスキーで認証し、ビジネス・ユーザー・権限・デバイスの各テーブルを読み書きする。
type Client struct {
	// http はデータストアへのHTTPクライアント。
	http *httpclient.Client
}

// New は新しいデータストアクライアントを生成する。
// baseURLにはデータストアのベースURL、serviceKeyには特権アクセスキーを指定する。
func New(baseURL, serviceKey string) *Client {
	return &Client{
		http: httpclient.New(baseURL,
			httpclient.WithHeader("apikey", serviceKey),
			httpclient.WithHeader("Authorization", "Bearer "+serviceKey),
		),
	}
}

// Business はビジネスのレコードを表す。
type Business struct {
	// ID はビジネスの一意識別子。
	ID string `json:"id"`
	// Name はビジネス名。
	Name string `json:"nombre"`
	// OwnerEmail はオーナーのメールアドレス。
	OwnerEmail string `json:"owner_email"`
}

// Device は登録済みのプッシュ通知先デバイスを表す。
// activo=falseへの遷移は一方通行で、このサブシステムが再有効化することはない。
type Device struct {
	// Token はプッシュ送信先のデバイストークン。
	Token string `json:"fcm_token"`
	// UserID はデバイスを所有するユーザーのID。
	UserID string `json:"usuario_id"`
}

// GetBusiness はビジネスレコードをIDで取得する。
// レコードが存在しない場合はErrNotFoundを返す。
func (c *Client) GetBusiness(ctx context.Context, businessID string) (*Business, error) {
	q := url.Values{}
	q.Set("select", "id,nombre,owner_email")
	q.Set("id", "eq."+businessID)

	var rows []Business
	if err := c.http.GetJSON(ctx, "/rest/v1/negocios?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// FindUserIDByEmail はメールアドレスからユーザーIDを取得する。
// 一致するアカウントが無い場合は空文字列を返す（失敗ではない）。
func (c *Client) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("email", "eq."+email)

	var rows []struct {
		ID string `json:"id"`
	}
	if err := c.http.GetJSON(ctx, "/rest/v1/usuarios?"+q.Encode(), &rows); err != nil {
		return "", fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

// ListPermittedEmployeeIDs はチャット通知の権限を持つ従業員のIDを取得する。
func (c *Client) ListPermittedEmployeeIDs(ctx context.Context, businessID string) ([]string, error) {
	q := url.Values{}
	q.Set("select", "empleado_id")
	q.Set("negocio_id", "eq."+businessID)
	q.Set("tiene_permiso", "eq.true")

	var rows []struct {
		EmpleadoID string `json:"empleado_id"`
	}
	if err := c.http.GetJSON(ctx, "/rest/v1/permisos_chat_qr?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("チャット権限の取得に失敗: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.EmpleadoID)
	}
	return ids, nil
}

// FindEmployeeUserID は従業員IDから対応するユーザーIDを取得する。
// アカウントと紐付いていない従業員の場合は空文字列を返す。
func (c *Client) FindEmployeeUserID(ctx context.Context, employeeID string) (string, error) {
	q := url.Values{}
	q.Set("select", "usuario_id")
	q.Set("id", "eq."+employeeID)

	var rows []struct {
		UsuarioID string `json:"usuario_id"`
	}
	if err := c.http.GetJSON(ctx, "/rest/v1/empleados?"+q.Encode(), &rows); err != nil {
		return "", fmt.Errorf("従業員の取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].UsuarioID, nil
}

// ListActiveDevices は指定されたユーザー群の有効なデバイスを取得する。
// activo=trueのデバイスのみが対象で、一致が無い場合は空のスライスを返す。
func (c *Client) ListActiveDevices(ctx context.Context, userIDs []string) ([]Device, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("select", "fcm_token,usuario_id")
	q.Set("usuario_id", "in.("+strings.Join(userIDs, ",")+")")
	q.Set("activo", "eq.true")

	var devices []Device
	if err := c.http.GetJSON(ctx, "/rest/v1/dispositivos_fcm?"+q.Encode(), &devices); err != nil {
		return nil, fmt.Errorf("デバイスの取得に失敗: %w", err)
	}
	return devices, nil
}

// DeactivateDevice はデバイスを無効化する。
// プロバイダがトークンの恒久的な無効を報告した場合にのみ呼び出される。
// 無効化は一方通行の単一行更新で、冪等である。
func (c *Client) DeactivateDevice(ctx context.Context, token string) error {
	q := url.Values{}
	q.Set("fcm_token", "eq."+token)

	body := map[string]bool{"activo": false}
	if err := c.http.PatchJSON(ctx, "/rest/v1/dispositivos_fcm?"+q.Encode(), body, nil); err != nil {
		return fmt.Errorf("デバイスの無効化に失敗: %w", err)
	}
	return nil
}
