package webhook

import (
	"encoding/json"
	"errors"
	"testing"
)

// chatRow はテスト用のチャットメッセージ行。
type chatRow struct {
	// ID はメッセージの一意識別子。
	ID string `json:"id"`
	// Mensaje はメッセージ本文。
	Mensaje string `json:"mensaje"`
}

// TestEnvelopeUnmarshal はWebhookペイロードのデコードを検証する。
func TestEnvelopeUnmarshal(t *testing.T) {
	t.Parallel()

	t.Run("INSERTイベントのエンベロープをデコードできること", func(t *testing.T) {
		t.Parallel()

		payload := `{
			"type": "INSERT",
			"table": "chat_mensajes",
			"schema": "public",
			"record": {"id": "msg-1", "mensaje": "hola"}
		}`

		var env Envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			t.Fatalf("エンベロープのデコードに失敗: %v", err)
		}

		if env.Type != TypeInsert {
			t.Errorf("Type = %q, want %q", env.Type, TypeInsert)
		}
		if env.Table != "chat_mensajes" {
			t.Errorf("Table = %q, want %q", env.Table, "chat_mensajes")
		}
		if env.Schema != "public" {
			t.Errorf("Schema = %q, want %q", env.Schema, "public")
		}
		if len(env.Record) == 0 {
			t.Error("Recordが空")
		}
		if len(env.OldRecord) != 0 {
			t.Errorf("INSERTイベントでOldRecordが設定されている: %s", string(env.OldRecord))
		}
	})

	t.Run("UPDATEイベントでold_recordもデコードされること", func(t *testing.T) {
		t.Parallel()

		payload := `{
			"type": "UPDATE",
			"table": "chat_mensajes",
			"schema": "public",
			"record": {"id": "msg-1", "mensaje": "editado"},
			"old_record": {"id": "msg-1", "mensaje": "original"}
		}`

		var env Envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			t.Fatalf("エンベロープのデコードに失敗: %v", err)
		}

		if env.Type != TypeUpdate {
			t.Errorf("Type = %q, want %q", env.Type, TypeUpdate)
		}
		old, err := DecodeRecord[chatRow](&Envelope{Record: env.OldRecord})
		if err != nil {
			t.Fatalf("old_recordのデコードに失敗: %v", err)
		}
		if old.Mensaje != "original" {
			t.Errorf("old.Mensaje = %q, want %q", old.Mensaje, "original")
		}
	})
}

// TestDecodeRecord はDecodeRecord関数を検証する。
func TestDecodeRecord(t *testing.T) {
	t.Parallel()

	t.Run("recordを指定した型にデコードできること", func(t *testing.T) {
		t.Parallel()

		env := &Envelope{
			Type:   TypeInsert,
			Record: json.RawMessage(`{"id": "msg-42", "mensaje": "buenas tardes"}`),
		}

		row, err := DecodeRecord[chatRow](env)
		if err != nil {
			t.Fatalf("DecodeRecord()でエラーが発生: %v", err)
		}
		if row.ID != "msg-42" {
			t.Errorf("ID = %q, want %q", row.ID, "msg-42")
		}
		if row.Mensaje != "buenas tardes" {
			t.Errorf("Mensaje = %q, want %q", row.Mensaje, "buenas tardes")
		}
	})

	t.Run("recordが無い場合にErrNoRecordが返ること", func(t *testing.T) {
		t.Parallel()

		env := &Envelope{Type: TypeInsert}

		_, err := DecodeRecord[chatRow](env)
		if !errors.Is(err, ErrNoRecord) {
			t.Fatalf("ErrNoRecordであるべきだが、%v が返った", err)
		}
	})

	t.Run("不正なJSONのrecordでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		env := &Envelope{
			Type:   TypeInsert,
			Record: json.RawMessage(`{invalid`),
		}

		_, err := DecodeRecord[chatRow](env)
		if err == nil {
			t.Fatal("DecodeRecord()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("型が一致しないフィールドは無視されること", func(t *testing.T) {
		t.Parallel()

		env := &Envelope{
			Type:   TypeInsert,
			Record: json.RawMessage(`{"id": "msg-1", "mensaje": "hola", "extra": 123}`),
		}

		row, err := DecodeRecord[chatRow](env)
		if err != nil {
			t.Fatalf("DecodeRecord()でエラーが発生: %v", err)
		}
		if row.ID != "msg-1" {
			t.Errorf("ID = %q, want %q", row.ID, "msg-1")
		}
	})
}
