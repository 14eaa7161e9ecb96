package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"webcamsnap/internal/camera"
	"webcamsnap/internal/config"
	"webcamsnap/internal/logging"
	"webcamsnap/internal/notify"
	"webcamsnap/internal/server"
	"webcamsnap/internal/snapshot"
	"webcamsnap/internal/storage"
	"webcamsnap/internal/upload"
)

// 終了コード
const (
	exitConfig = 1 // 起動時の設定エラー
	exitQuota  = 2 // 容量上限を超えた
)

func main() {
	os.Exit(run())
}

func run() int {
	once := flag.Bool("once", false, "1サイクルだけ実行して終了")
	flag.Parse()

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		slog.Error("設定の読み込みに失敗しました", "error", err)
		return exitConfig
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
	}, os.Stdout)
	if err != nil {
		slog.Error("ロガーの作成に失敗しました", "error", err)
		return exitConfig
	}
	defer logCloser.Close()
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn("設定値を補正しました", "key", w.Key, "value", w.Value, "reason", w.Reason)
	}

	// シグナルを受けたらサイクルの合間でループを止める
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received atomic.Value
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("シグナルを受信しました", "signal", sig.String())
			received.Store(sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	settings := cfg.CaptureSettings()
	deviceName := camera.DeviceName(ctx, settings.Device)
	logger.Info("webcamsnap を起動します",
		"device", settings.Device,
		"device_name", deviceName,
		"tool", settings.Tool,
		"interval", cfg.Interval(),
		"push", cfg.Upload.Enabled,
		"data_dir", cfg.Storage.DataDir,
		"max_data_size", storage.FormatSize(cfg.Storage.MaxBytes),
		"prune", cfg.PrunePolicy().String(),
		"serve_latest", cfg.Server.Enabled)

	if err := camera.CheckTool(settings.Tool); err != nil {
		logger.Warn("撮影コマンドが使えません。撮影は毎回失敗します", "error", err)
	}

	loop, notifier, err := buildLoop(ctx, cfg, logger)
	if err != nil {
		logger.Error("初期化に失敗しました", "error", err)
		return exitConfig
	}
	defer notifier.Close()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Enabled {
		srv := server.New(cfg, logger)
		g.Go(func() error {
			// 配信が止まっても撮影は続ける
			if err := srv.Start(gctx); err != nil {
				logger.Error("配信サーバーが停止しました", "error", err)
			}
			return nil
		})
	}

	var loopErr error
	g.Go(func() error {
		// ループが終わったらサーバーも止める
		defer cancel()
		if *once {
			loopErr = loop.RunOnce(ctx)
		} else {
			loopErr = loop.Run(ctx)
		}
		return nil
	})

	_ = g.Wait()

	switch {
	case storage.IsQuotaExceeded(loopErr):
		logger.Error("容量上限に達したため終了します", "error", loopErr)
		return exitQuota
	case received.Load() != nil:
		sig, _ := received.Load().(syscall.Signal)
		return 128 + int(sig)
	case loopErr != nil && !errors.Is(loopErr, context.Canceled):
		logger.Error("撮影ループが異常終了しました", "error", loopErr)
		return exitConfig
	}
	return 0
}

// buildLoop は設定から撮影ループを組み立てる
func buildLoop(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*snapshot.Loop, notify.Publisher, error) {
	capturer := camera.NewCommandCapturer(cfg.CaptureSettings())

	var (
		uploader snapshot.Uploader
		store    snapshot.Store
	)
	if cfg.Upload.Enabled {
		uploader = upload.NewUploader(cfg.Upload.URL, cfg.Upload.Token, cfg.UploadTimeout(), nil, logger)
	} else {
		store = storage.NewStore(storage.Options{
			Dir:      cfg.Storage.DataDir,
			MaxBytes: cfg.Storage.MaxBytes,
			Policy:   cfg.PrunePolicy(),
			Mirror:   cfg.Storage.LatestMirror,
			Logger:   logger,
		})
	}

	var notifier notify.Publisher = notify.Nop{}
	if cfg.Notify.Broker != "" {
		p := notify.NewMQTTPublisher(notify.MQTTConfig{
			Broker:   cfg.Notify.Broker,
			Topic:    cfg.Notify.Topic,
			ClientID: cfg.Notify.ClientID,
			Username: cfg.Notify.Username,
			Password: cfg.Notify.Password,
			Logger:   logger,
		})
		// 通知は補助機能なので接続できなくても撮影は続ける
		if err := p.Connect(ctx); err != nil {
			logger.Warn("MQTTブローカーに接続できません。通知を無効にします", "broker", cfg.Notify.Broker, "error", err)
			_ = p.Close()
		} else {
			notifier = p
		}
	}

	loop, err := snapshot.New(snapshot.Config{
		Interval: cfg.Interval(),
		TempDir:  cfg.Capture.TempDir,
		Push:     cfg.Upload.Enabled,
	}, capturer, uploader, store, logger, snapshot.WithNotifier(notifier))
	if err != nil {
		_ = notifier.Close()
		return nil, nil, fmt.Errorf("撮影ループの作成に失敗: %w", err)
	}
	return loop, notifier, nil
}
