package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type はデータベース変更イベントの種類を表す。
type Type string

const (
	// TypeInsert は行の挿入を表す。
	TypeInsert Type = "INSERT"
	// TypeUpdate は行の更新を表す。
	TypeUpdate Type = "UPDATE"
	// TypeDelete は行の削除を表す。
	TypeDelete Type = "DELETE"
)

// Envelope はデータベースの変更キャプチャトリガーが配信するWebhookペイロードを表す。
// recordには変更後の行、old_recordには変更前の行がそのまま含まれる。
type Envelope struct {
	// Type は変更イベントの種類。
	Type Type `json:"type"`
	// Table は変更が発生したテーブル名。
	Table string `json:"table"`
	// Schema はテーブルが属するスキーマ名。
	Schema string `json:"schema"`
	// Record は変更後の行（JSON形式）。
	Record json.RawMessage `json:"record"`
	// OldRecord は変更前の行（JSON形式）。INSERT時は空。
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// ErrNoRecord はEnvelopeにrecordが含まれていないことを表すエラー。
var ErrNoRecord = errors.New("webhookペイロードにrecordが含まれていません")

// DecodeRecord はEnvelopeのRecordフィールドを指定された型にデシリアライズする。
func DecodeRecord[T any](e *Envelope) (*T, error) {
	if len(e.Record) == 0 {
		return nil, ErrNoRecord
	}

	var record T
	if err := json.Unmarshal(e.Record, &record); err != nil {
		return nil, fmt.Errorf("recordのデシリアライズに失敗: %w", err)
	}
	return &record, nil
}
