package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"webcamsnap/internal/camera"
	"webcamsnap/internal/fsx"
)

// Options は Store の設定
type Options struct {
	Dir      string       // 保存先ディレクトリ
	MaxBytes int64        // 容量上限（0は無制限）
	Policy   Policy       // 剪定ポリシー
	Mirror   bool         // latest ミラーを更新するか
	Logger   *slog.Logger // nil なら slog.Default()
}

// Store はキャプチャ画像を保存先ディレクトリに永続化する
type Store struct {
	dir        string
	maxBytes   int64
	mirror     bool
	accountant Accountant
	enforcer   *Enforcer
	logger     *slog.Logger
}

// NewStore は実ファイルシステムを使う Store を作成する
func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return newStore(opts, NewDiskUsage(), NewFilePruner(opts.Logger))
}

func newStore(opts Options, accountant Accountant, pruner Pruner) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		dir:        opts.Dir,
		maxBytes:   opts.MaxBytes,
		mirror:     opts.Mirror,
		accountant: accountant,
		enforcer:   NewEnforcer(opts.Dir, opts.Policy, accountant, pruner, opts.Logger),
		logger:     opts.Logger.With("component", "store"),
	}
}

// Dir は保存先ディレクトリを返す
func (s *Store) Dir() string {
	return s.dir
}

// LatestPath は latest ミラーのパスを返す
func (s *Store) LatestPath() string {
	return filepath.Join(s.dir, LatestFileName)
}

// Usage は保存先ディレクトリの現在の使用量を返す
func (s *Store) Usage() int64 {
	return s.accountant.TotalOccupiedBytes(s.dir)
}

// Persist は容量チェック（Admit）の後にフレームを保存先へ移動する（Commit）
//
// 容量チェックが ErrQuotaExceeded を返した場合は何も書き込まずにそのまま返す。
func (s *Store) Persist(frame camera.Frame) (string, error) {
	if err := s.Admit(frame); err != nil {
		return "", err
	}
	return s.Commit(frame)
}

// Admit はフレームを保存しても容量上限に収まるか確認する
// 必要なら剪定を1回だけ行う。収まらない場合は *QuotaExceededError を返す。
func (s *Store) Admit(frame camera.Frame) error {
	incoming, err := s.accountant.SizeOf(frame.Path)
	if err != nil {
		return fmt.Errorf("キャプチャ画像のサイズ取得に失敗: %w", err)
	}

	var existingLatest int64
	if s.mirror {
		existingLatest, err = s.accountant.SizeOf(s.LatestPath())
		if err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn("latest ミラーのサイズ取得に失敗しました", "path", s.LatestPath(), "error", err)
		}
	}

	delta := IncomingDelta(incoming, existingLatest, s.mirror)
	return s.enforcer.EnforceOrFail(s.maxBytes, delta)
}

// Commit はフレームを保存先へ移動し、ミラー有効時は latest.jpg を原子的に置き換える
// Admit が成功した後に呼ぶこと。
func (s *Store) Commit(frame camera.Frame) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err)
	}

	name := frame.Name
	if name == "" {
		name = CaptureFileName(frame.Timestamp)
	}
	dst := filepath.Join(s.dir, name)
	if err := fsx.MoveFile(frame.Path, dst); err != nil {
		if !fsx.IsSourceLeft(err) {
			return "", fmt.Errorf("キャプチャ画像の移動に失敗: %w", err)
		}
		// 保存先には書き込めているので続行する
		s.logger.Warn("一時ファイルを削除できませんでした", "path", frame.Path, "error", err)
	}

	if s.mirror {
		if err := fsx.CopyFileAtomic(dst, s.dir, LatestFileName); err != nil {
			return dst, fmt.Errorf("latest ミラーの更新に失敗: %w", err)
		}
	}

	s.logger.Info("キャプチャ画像を保存しました", "path", dst, "mirror", s.mirror)
	return dst, nil
}
