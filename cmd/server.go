// Package main は最新画像の配信サーバー単体コマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"webcamsnap/internal/config"
	"webcamsnap/internal/logging"
	"webcamsnap/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host    = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port    = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		dataDir = flag.String("data-dir", "", "latest.jpg を置くディレクトリ (デフォルト: DATA_DIR)")
		help    = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("webcamsnap latest.jpg 配信サーバー")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む（コマンドラインオプションは検証前に上書きする）
	cfg, err := config.LoadForServer(func(c *config.Config) {
		if *host != "" {
			c.Server.Host = *host
		}
		if *port != 0 {
			c.Server.Port = *port
		}
		if *dataDir != "" {
			c.Storage.DataDir = *dataDir
		}
	})
	if err != nil {
		slog.Error("設定の読み込みに失敗しました", "error", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
	}, os.Stdout)
	if err != nil {
		slog.Error("ロガーの作成に失敗しました", "error", err)
		os.Exit(1)
	}
	defer closer.Close()
	for _, w := range cfg.Warnings {
		logger.Warn("設定値を補正しました", "key", w.Key, "value", w.Value, "reason", w.Reason)
	}

	srv := server.New(cfg, logger)

	// SIGINT/SIGTERM でグレースフルシャットダウン
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// サーバーを起動
	logger.Info("配信サーバーを起動します", "addr", cfg.ServerAddress(), "data_dir", cfg.Storage.DataDir)
	if err := srv.Start(ctx); err != nil {
		logger.Error("サーバーの起動に失敗しました", "error", err)
		closer.Close()
		os.Exit(1)
	}
}
