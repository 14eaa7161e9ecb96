package camera

import (
	"context"
	"time"
)

// Tool は撮影に使う外部コマンド
type Tool string

const (
	ToolFswebcam Tool = "fswebcam" // fswebcam で1枚撮影
	ToolFFmpeg   Tool = "ffmpeg"   // ffmpeg の v4l2 入力で1枚撮影
)

// Settings は撮影設定
type Settings struct {
	Device     string        // デバイスパス（例: /dev/video0）
	Resolution string        // 解像度（例: 1280x720）
	Quality    int           // JPEG品質 (1-100)
	Tool       Tool          // 使用する外部コマンド
	Timeout    time.Duration // 1回の撮影のタイムアウト
}

// Frame は撮影した1枚のJPEG画像
// 一時ディレクトリに置かれ、アップロードか保存のどちらかで1回だけ消費される。
type Frame struct {
	Path      string    // 一時ファイルのパス
	Name      string    // ファイル名（capture_<UNIX秒>.jpg）
	Timestamp time.Time // 撮影時刻（ファイルの識別子）
	Size      int64     // バイト数
}

// Capturer は1枚の画像を outPath に書き出す
type Capturer interface {
	Capture(ctx context.Context, outPath string) error
}
