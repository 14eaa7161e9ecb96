package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tc := range testCases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Info("表示されない")
	logger.Warn("表示される", "key", "value")

	out := buf.String()
	if strings.Contains(out, "表示されない") {
		t.Errorf("info は出力されないはず: %s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "key=value") {
		t.Errorf("warn が出力されるはず: %s", out)
	}
}

func TestNew_FileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "webcamsnap.log")
	logger, closer, err := New(Options{Level: "info", File: path, MaxSizeMB: 1}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("撮影完了", "file", "capture_1.jpg")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ログファイルの読み込みに失敗: %v", err)
	}
	if !strings.Contains(string(data), "file=capture_1.jpg") {
		t.Errorf("ファイルに出力されるはず: %s", data)
	}
	if !strings.Contains(buf.String(), "file=capture_1.jpg") {
		t.Errorf("標準出力にも出力されるはず: %s", buf.String())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("不明なレベルはエラーのはず")
	}
}
