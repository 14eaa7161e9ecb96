package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound は計測対象のファイルが存在しないことを表す
var ErrNotFound = errors.New("ファイルが見つかりません")

// Accountant はディレクトリとファイルのディスク使用量を計測する
type Accountant interface {
	// TotalOccupiedBytes はディレクトリ配下の実使用量を返す（存在しない場合は0）
	TotalOccupiedBytes(dir string) int64

	// SizeOf は単一ファイルの実使用量を返す
	SizeOf(path string) (int64, error)
}

// DiskUsage はファイルシステムのブロック割り当てに基づく Accountant 実装
type DiskUsage struct{}

// NewDiskUsage は新しいDiskUsageを作成する
func NewDiskUsage() *DiskUsage {
	return &DiskUsage{}
}

// TotalOccupiedBytes はディレクトリ配下の全通常ファイルの使用量を合計する
// ディレクトリが存在しない・空の場合は0を返す（起動直後の正常な状態）。
func (DiskUsage) TotalOccupiedBytes(dir string) int64 {
	var total int64

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// 読めないエントリはスキップ
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += allocatedSize(info)
		return nil
	})

	return total
}

// SizeOf は単一ファイルの使用量を返す
func (DiskUsage) SizeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, fmt.Errorf("ファイル情報の取得に失敗: %w", err)
	}
	return allocatedSize(info), nil
}
