// Package logging はslogロガーの構築を行う。
// 標準出力に加え、指定があればローテーション付きのファイルにも出力する。
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options はロガーの設定
type Options struct {
	Level      string // debug, info, warn, error
	File       string // 空ならファイル出力なし
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// ParseLevel はログレベル名を slog.Level に変換する
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("不明なログレベル: %q", s)
}

// New はロガーを作成する
// 返り値の io.Closer はファイル出力を閉じるために使う（ファイル出力なしでも nil ではない）。
func New(opts Options, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	w := stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(stdout, lj)
		closer = lj
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
