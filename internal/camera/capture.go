package camera

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// CaptureError は外部コマンドによる撮影の失敗を表す
type CaptureError struct {
	Device string
	Err    error
	Output string
}

func (e *CaptureError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("フレームキャプチャに失敗 (%s): %v (output: %s)", e.Device, e.Err, e.Output)
	}
	return fmt.Sprintf("フレームキャプチャに失敗 (%s): %v", e.Device, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// runFunc は外部コマンドを実行して結合出力を返す
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.Bytes(), err
}

// CommandCapturer は外部コマンドを使ってV4L2デバイスから1枚撮影する
type CommandCapturer struct {
	settings Settings
	run      runFunc
}

// NewCommandCapturer は新しいCommandCapturerを作成する
func NewCommandCapturer(settings Settings) *CommandCapturer {
	if settings.Tool == "" {
		settings.Tool = ToolFswebcam
	}
	return &CommandCapturer{
		settings: settings,
		run:      runCommand,
	}
}

// Capture は1フレームを撮影して outPath にJPEGとして保存する
func (c *CommandCapturer) Capture(ctx context.Context, outPath string) error {
	if c.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.Timeout)
		defer cancel()
	}

	name, args := c.command(outPath)
	output, err := c.run(ctx, name, args...)
	if err != nil {
		return &CaptureError{Device: c.settings.Device, Err: err, Output: string(bytes.TrimSpace(output))}
	}

	// fswebcam はデバイスエラーでも終了コード0を返すことがあるため出力ファイルで判定する
	info, err := os.Stat(outPath)
	if err != nil {
		return &CaptureError{Device: c.settings.Device, Err: fmt.Errorf("出力ファイルがありません: %w", err), Output: string(bytes.TrimSpace(output))}
	}
	if info.Size() == 0 {
		_ = os.Remove(outPath)
		return &CaptureError{Device: c.settings.Device, Err: fmt.Errorf("出力ファイルが空です: %s", outPath)}
	}

	return nil
}

// command は撮影に使うコマンドと引数を組み立てる
func (c *CommandCapturer) command(outPath string) (string, []string) {
	s := c.settings

	switch s.Tool {
	case ToolFFmpeg:
		args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
		if s.Resolution != "" {
			args = append(args, "-video_size", s.Resolution)
		}
		args = append(args,
			"-i", s.Device,
			"-frames:v", "1",
			"-q:v", strconv.Itoa(qualityToQScale(s.Quality)),
			"-y",
			outPath,
		)
		return "ffmpeg", args
	default:
		args := []string{"-q", "-d", s.Device}
		if s.Resolution != "" {
			args = append(args, "-r", s.Resolution)
		}
		if s.Quality > 0 {
			args = append(args, "--jpeg", strconv.Itoa(s.Quality))
		}
		args = append(args, "--no-banner", outPath)
		return "fswebcam", args
	}
}

// qualityToQScale はJPEG品質(1-100)を ffmpeg の -q:v (31-2) に変換する
func qualityToQScale(quality int) int {
	if quality <= 0 {
		return 2
	}
	if quality > 100 {
		quality = 100
	}
	q := 31 - (quality*29)/100
	if q < 2 {
		q = 2
	}
	return q
}
