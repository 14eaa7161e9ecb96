// Package fsx はキャプチャ画像の移動と原子的な置き換えを提供する。
package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// テストから EXDEV などを再現できるよう差し替え可能にしておく
var (
	renameFunc = os.Rename
	removeFunc = os.Remove
)

// CrossDeviceError はファイルシステムを跨ぐ rename（EXDEV）の失敗を表す
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("ファイルシステムを跨ぐ移動に失敗（EXDEV）: %q -> %q: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice は err が EXDEV 由来か判定する
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// SourceLeftError は移動先への書き込みは完了したが、移動元を削除できなかったことを表す
// 移動自体は成功しているので、呼び出し側は警告として扱えばよい。
type SourceLeftError struct {
	Src string
	Err error
}

func (e *SourceLeftError) Error() string {
	return fmt.Sprintf("移動元の削除に失敗: %q: %v", e.Src, e.Err)
}

func (e *SourceLeftError) Unwrap() error { return e.Err }

// IsSourceLeft は err が移動元の削除失敗だけを表すか判定する
func IsSourceLeft(err error) bool {
	var e *SourceLeftError
	return errors.As(err, &e)
}

// Rename は os.Rename を包み、EXDEV を CrossDeviceError として返す
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// MoveFile は src を dst に移動する
// 一時ディレクトリ（tmpfs など）から保存先への移動は EXDEV になり得るため、
// その場合は dst と同じディレクトリへの原子的コピー後に src を削除する。
// コピー後に src を削除できなかった場合は SourceLeftError を返す（dst は完成している）。
func MoveFile(src, dst string) error {
	err := Rename(src, dst)
	if err == nil {
		return nil
	}
	if !IsCrossDevice(err) {
		return err
	}

	if err := CopyFileAtomic(src, filepath.Dir(dst), filepath.Base(dst)); err != nil {
		return err
	}
	if err := removeFunc(src); err != nil {
		return &SourceLeftError{Src: src, Err: err}
	}
	return nil
}

// CopyFileAtomic は src の内容を dir/name に原子的に書き込む（同名は置き換え）
//
// 一時ファイルは rename の原子性のため必ず同じディレクトリに作る。
// 読み手は置き換え前か置き換え後の完全なファイルだけを観測する。
func CopyFileAtomic(src, dir, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeAtomic(dir, name, 0o644, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func writeAtomic(dir, name string, perm os.FileMode, fill func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 先頭 '.' の一時ファイル。キャプチャ画像のパターンには一致しない。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
