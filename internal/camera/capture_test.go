package camera

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestCommandCapturer_Command(t *testing.T) {
	testCases := []struct {
		name     string
		settings Settings
		wantName string
		wantArgs []string
	}{
		{
			name:     "fswebcam",
			settings: Settings{Device: "/dev/video0", Resolution: "1280x720", Quality: 85},
			wantName: "fswebcam",
			wantArgs: []string{"-q", "-d", "/dev/video0", "-r", "1280x720", "--jpeg", "85", "--no-banner", "/tmp/out.jpg"},
		},
		{
			name:     "fswebcam 解像度と品質なし",
			settings: Settings{Device: "/dev/video1"},
			wantName: "fswebcam",
			wantArgs: []string{"-q", "-d", "/dev/video1", "--no-banner", "/tmp/out.jpg"},
		},
		{
			name:     "ffmpeg",
			settings: Settings{Device: "/dev/video0", Resolution: "640x480", Quality: 100, Tool: ToolFFmpeg},
			wantName: "ffmpeg",
			wantArgs: []string{
				"-hide_banner", "-loglevel", "error", "-f", "v4l2",
				"-video_size", "640x480",
				"-i", "/dev/video0", "-frames:v", "1", "-q:v", "2", "-y", "/tmp/out.jpg",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCommandCapturer(tc.settings)
			name, args := c.command("/tmp/out.jpg")
			if name != tc.wantName {
				t.Errorf("コマンド: got %q, want %q", name, tc.wantName)
			}
			if !reflect.DeepEqual(args, tc.wantArgs) {
				t.Errorf("引数:\n got  %v\n want %v", args, tc.wantArgs)
			}
		})
	}
}

func TestQualityToQScale(t *testing.T) {
	testCases := []struct {
		quality int
		want    int
	}{
		{0, 2},
		{1, 31},
		{50, 17},
		{85, 7},
		{100, 2},
		{150, 2},
	}
	for _, tc := range testCases {
		if got := qualityToQScale(tc.quality); got != tc.want {
			t.Errorf("qualityToQScale(%d) = %d, want %d", tc.quality, got, tc.want)
		}
	}
}

func TestCommandCapturer_Capture(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.jpg")
	c := NewCommandCapturer(Settings{Device: "/dev/video0", Timeout: time.Second})

	var gotName string
	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		if _, ok := ctx.Deadline(); !ok {
			t.Error("タイムアウトが設定されるはず")
		}
		return nil, os.WriteFile(args[len(args)-1], []byte{0xff, 0xd8, 0xff}, 0o644)
	}

	if err := c.Capture(context.Background(), out); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if gotName != "fswebcam" {
		t.Errorf("デフォルトは fswebcam のはず: %q", gotName)
	}
}

func TestCommandCapturer_CaptureErrors(t *testing.T) {
	testCases := []struct {
		name string
		run  runFunc
	}{
		{
			name: "コマンドが失敗",
			run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
				return []byte("Error opening device"), errors.New("exit status 1")
			},
		},
		{
			name: "出力ファイルがない",
			run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
				return nil, nil
			},
		},
		{
			name: "出力ファイルが空",
			run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
				return nil, os.WriteFile(args[len(args)-1], nil, 0o644)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "frame.jpg")
			c := NewCommandCapturer(Settings{Device: "/dev/video0"})
			c.run = tc.run

			err := c.Capture(context.Background(), out)
			var cerr *CaptureError
			if !errors.As(err, &cerr) {
				t.Fatalf("CaptureError を期待: %v", err)
			}
			if cerr.Device != "/dev/video0" {
				t.Errorf("デバイス: got %q", cerr.Device)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("失敗時に出力ファイルを残さないはず")
			}
		})
	}
}
