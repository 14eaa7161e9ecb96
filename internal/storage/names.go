package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/IGLOU-EU/go-wildcard"
)

const (
	// CaptureFilePattern は保存済みキャプチャ画像のファイル名パターン
	CaptureFilePattern = "capture_*.jpg"

	// LatestFileName は最新画像ミラーの固定ファイル名
	LatestFileName = "latest.jpg"
)

// CaptureFileName は撮影時刻（UNIX秒）を埋め込んだファイル名を返す
func CaptureFileName(t time.Time) string {
	return fmt.Sprintf("capture_%d.jpg", t.Unix())
}

// IsCaptureFile はファイル名がキャプチャ画像の命名規則に一致するか判定する
func IsCaptureFile(path string) bool {
	return wildcard.Match(CaptureFilePattern, filepath.Base(path))
}
