// Package notify は撮影イベントを外部へ通知する。
// ブローカーが設定されていない場合は何もしない Nop を使う。
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// EventType はイベントの種類
type EventType string

const (
	EventUploaded  EventType = "uploaded"  // APIへ送信した
	EventPersisted EventType = "persisted" // DATA_DIR に保存した
)

// Event は1枚のフレームが処理されたことを表す
type Event struct {
	Type      EventType `json:"type"`
	File      string    `json:"file"`
	Timestamp int64     `json:"timestamp"` // 撮影時刻（UNIX秒）
	Size      int64     `json:"size"`
	Digest    string    `json:"digest,omitempty"`
	Path      string    `json:"path,omitempty"`       // 保存先（persisted のみ）
	RequestID string    `json:"request_id,omitempty"` // アップロードのリクエストID（uploaded のみ）
	SentAt    time.Time `json:"sent_at"`
}

// Encode はイベントをJSONにする
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher はイベントの通知先
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop は何もしない Publisher
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
