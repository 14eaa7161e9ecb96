package snapshot

import (
	"context"
	_ "crypto/sha256" // digest.Canonical
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"webcamsnap/internal/camera"
	"webcamsnap/internal/notify"
	"webcamsnap/internal/storage"
	"webcamsnap/internal/upload"
)

// State はループの状態
type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateUploading  State = "uploading"
	StateEnforcing  State = "enforcing"
	StatePersisting State = "persisting"
	StateSleeping   State = "sleeping"
	StateStopped    State = "stopped"
)

// Uploader はフレームをAPIへ送信する
type Uploader interface {
	Upload(ctx context.Context, frame camera.Frame) (*upload.Result, error)
}

// Store はフレームを容量チェックの後に保存する
type Store interface {
	Admit(frame camera.Frame) error
	Commit(frame camera.Frame) (string, error)
}

// Config はループの設定
type Config struct {
	Interval time.Duration // 撮影間隔
	TempDir  string        // 撮影画像の一時置き場
	Push     bool          // true ならアップロード、false なら保存
}

// Loop は撮影・送信（または保存）・待機を繰り返す
type Loop struct {
	cfg      Config
	capturer camera.Capturer
	uploader Uploader
	store    Store
	notifier notify.Publisher
	logger   *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	state  State
	cycles int
}

// Option はLoopの任意設定
type Option func(*Loop)

// WithNotifier は処理済みフレームの通知先を設定する
func WithNotifier(p notify.Publisher) Option {
	return func(l *Loop) { l.notifier = p }
}

// WithClock は現在時刻の取得と待機を差し替える
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New は新しいLoopを作成する
// Push が true の場合は uploader、false の場合は store が必要。
func New(cfg Config, capturer camera.Capturer, uploader Uploader, store Store, logger *slog.Logger, opts ...Option) (*Loop, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("撮影間隔が不正です: %v", cfg.Interval)
	}
	if capturer == nil {
		return nil, errors.New("capturer が指定されていません")
	}
	if cfg.Push && uploader == nil {
		return nil, errors.New("アップロードモードには uploader が必要です")
	}
	if !cfg.Push && store == nil {
		return nil, errors.New("保存モードには store が必要です")
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Loop{
		cfg:      cfg,
		capturer: capturer,
		uploader: uploader,
		store:    store,
		notifier: notify.Nop{},
		logger:   logger.With("component", "loop"),
		now:      time.Now,
		sleep:    sleepContext,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// State は現在の状態を返す
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Cycles は完了したサイクル数を返す
func (l *Loop) Cycles() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cycles
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

// Run は ctx がキャンセルされるか容量上限を超えるまでループする
//
// ctx のキャンセルは実行中のサイクルを中断せず、サイクル間で反映される。
// 容量超過の場合は storage.ErrQuotaExceeded をラップしたエラーを返す。
func (l *Loop) Run(ctx context.Context) error {
	mode := "persist"
	if l.cfg.Push {
		mode = "upload"
	}
	l.logger.Info("撮影ループを開始します", "interval", l.cfg.Interval, "mode", mode)

	for {
		if err := l.RunOnce(ctx); err != nil {
			return err
		}

		if ctx.Err() != nil {
			l.setState(StateStopped)
			l.logger.Info("撮影ループを停止します")
			return ctx.Err()
		}

		l.setState(StateSleeping)
		if err := l.sleep(ctx, l.cfg.Interval); err != nil {
			l.setState(StateStopped)
			l.logger.Info("撮影ループを停止します")
			return err
		}
		l.setState(StateIdle)
	}
}

// RunOnce は待機なしで1サイクルを実行する
// 返すエラーは容量超過（致命的）のみ。
func (l *Loop) RunOnce(ctx context.Context) error {
	// 実行中のサイクルはシグナルで中断しない
	ctx = context.WithoutCancel(ctx)

	err := l.cycle(ctx)

	l.mu.Lock()
	l.cycles++
	l.mu.Unlock()

	if err != nil {
		l.setState(StateStopped)
		return err
	}
	l.setState(StateIdle)
	return nil
}

func (l *Loop) cycle(ctx context.Context) error {
	l.setState(StateCapturing)
	frame, err := l.capture(ctx)
	if err != nil {
		l.logger.Warn("撮影に失敗しました。次のサイクルで再試行します", "error", err)
		return nil
	}

	if l.cfg.Push {
		l.setState(StateUploading)
		l.upload(ctx, frame)
		return nil
	}

	l.setState(StateEnforcing)
	if err := l.store.Admit(frame); err != nil {
		if storage.IsQuotaExceeded(err) {
			l.logger.Error("容量上限を超えるため停止します", "error", err)
			return err
		}
		l.logger.Warn("保存前のチェックに失敗しました", "file", frame.Name, "error", err)
		return nil
	}

	l.setState(StatePersisting)
	dst, err := l.store.Commit(frame)
	if err != nil {
		l.logger.Warn("保存に失敗しました", "file", frame.Name, "error", err)
		if dst == "" {
			return nil
		}
	}

	l.publish(ctx, notify.Event{
		Type:      notify.EventPersisted,
		File:      frame.Name,
		Timestamp: frame.Timestamp.Unix(),
		Size:      frame.Size,
		Digest:    fileDigest(dst),
		Path:      dst,
	})
	return nil
}

// capture は一時ディレクトリに1枚撮影する
func (l *Loop) capture(ctx context.Context) (camera.Frame, error) {
	ts := l.now()
	name := storage.CaptureFileName(ts)
	path := filepath.Join(l.cfg.TempDir, name)

	if err := os.MkdirAll(l.cfg.TempDir, 0o755); err != nil {
		return camera.Frame{}, fmt.Errorf("一時ディレクトリの作成に失敗: %w", err)
	}
	if err := l.capturer.Capture(ctx, path); err != nil {
		return camera.Frame{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return camera.Frame{}, fmt.Errorf("撮影画像が見つかりません: %w", err)
	}

	l.logger.Debug("撮影しました", "file", name, "size", info.Size())
	return camera.Frame{Path: path, Name: name, Timestamp: ts, Size: info.Size()}, nil
}

// upload はフレームを送信し、成功時のみ一時ファイルを削除する
func (l *Loop) upload(ctx context.Context, frame camera.Frame) {
	res, err := l.uploader.Upload(ctx, frame)
	if err != nil {
		// 調査用に一時ファイルは残す。再送はしない
		l.logger.Warn("アップロードに失敗しました", "file", frame.Name, "path", frame.Path, "error", err)
		return
	}

	if err := os.Remove(frame.Path); err != nil {
		l.logger.Warn("一時ファイルの削除に失敗しました", "path", frame.Path, "error", err)
	}
	l.logger.Info("アップロードしました", "file", frame.Name, "size", frame.Size, "request_id", res.RequestID)

	l.publish(ctx, notify.Event{
		Type:      notify.EventUploaded,
		File:      frame.Name,
		Timestamp: frame.Timestamp.Unix(),
		Size:      frame.Size,
		Digest:    res.Digest.String(),
		RequestID: res.RequestID,
	})
}

func (l *Loop) publish(ctx context.Context, event notify.Event) {
	event.SentAt = l.now()
	if err := l.notifier.Publish(ctx, event); err != nil {
		l.logger.Warn("イベントの通知に失敗しました", "type", event.Type, "file", event.File, "error", err)
	}
}

// fileDigest はファイルのダイジェストを返す。読めない場合は空文字列
func fileDigest(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	d, err := digest.FromReader(f)
	if err != nil {
		return ""
	}
	return d.String()
}

// sleepContext は d だけ待機する。ctx がキャンセルされたら即座に戻る
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
