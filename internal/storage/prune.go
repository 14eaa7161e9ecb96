package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Mode は剪定ポリシーの種類
type Mode string

const (
	ModeNone     Mode = "none"      // 剪定しない
	ModeKeepLast Mode = "keep_last" // 新しい順にN件だけ残す
	ModeMaxAge   Mode = "max_age"   // D日より古いファイルを削除
)

// Policy は剪定ポリシー
// Mode は設定値をそのまま保持し、不正な値は適用時に警告して無視する。
type Policy struct {
	Mode       Mode
	KeepLast   int
	MaxAgeDays int
}

// String はログ用の表記を返す
func (p Policy) String() string {
	switch p.Mode {
	case ModeKeepLast:
		return fmt.Sprintf("keep_last(%d)", p.KeepLast)
	case ModeMaxAge:
		return fmt.Sprintf("max_age(%dd)", p.MaxAgeDays)
	case ModeNone, "":
		return "none"
	default:
		return "unknown(" + string(p.Mode) + ")"
	}
}

// Pruner はキャプチャ画像の剪定を行う
type Pruner interface {
	// Apply はポリシーを適用し、削除したファイル数を返す
	Apply(policy Policy, dir string) int
}

// FilePruner はファイルシステム上で剪定を行う Pruner 実装
type FilePruner struct {
	logger *slog.Logger
	now    func() time.Time
	remove func(name string) error
}

// NewFilePruner は新しいFilePrunerを作成する
func NewFilePruner(logger *slog.Logger) *FilePruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilePruner{
		logger: logger.With("component", "pruner"),
		now:    time.Now,
		remove: os.Remove,
	}
}

// captureFile は剪定対象ファイルの情報
type captureFile struct {
	path    string
	name    string
	modTime time.Time
}

// Apply はポリシーを適用する
// 未知のモードや不正なパラメータは警告を出して何もしない（ループは止めない）。
func (p *FilePruner) Apply(policy Policy, dir string) int {
	switch policy.Mode {
	case ModeNone, "":
		return 0
	case ModeKeepLast:
		if policy.KeepLast < 1 {
			p.logger.Warn("KEEP_LAST_N が不正なため剪定をスキップします", "keep_last", policy.KeepLast)
			return 0
		}
		return p.keepLast(dir, policy.KeepLast)
	case ModeMaxAge:
		if policy.MaxAgeDays < 1 {
			p.logger.Warn("MAX_AGE_DAYS が不正なため剪定をスキップします", "max_age_days", policy.MaxAgeDays)
			return 0
		}
		return p.maxAge(dir, policy.MaxAgeDays)
	default:
		p.logger.Warn("未知の剪定モードのため剪定をスキップします", "mode", string(policy.Mode))
		return 0
	}
}

// keepLast は更新時刻の新しい順に n 件を残して削除する
func (p *FilePruner) keepLast(dir string, n int) int {
	files := p.listCaptureFiles(dir)
	if len(files) <= n {
		return 0
	}

	// 更新時刻の降順、同時刻はファイル名の降順
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].name > files[j].name
		}
		return files[i].modTime.After(files[j].modTime)
	})

	removed := 0
	for _, f := range files[n:] {
		if p.removeFile(f) {
			removed++
		}
	}

	p.logger.Info("keep_last 剪定を実行しました", "dir", dir, "keep", n, "removed", removed)
	return removed
}

// maxAge は経過時間が d×24時間 を超えたファイルを削除する
func (p *FilePruner) maxAge(dir string, days int) int {
	limit := time.Duration(days) * 24 * time.Hour
	now := p.now()

	removed := 0
	for _, f := range p.listCaptureFiles(dir) {
		if now.Sub(f.modTime) > limit {
			if p.removeFile(f) {
				removed++
			}
		}
	}

	p.logger.Info("max_age 剪定を実行しました", "dir", dir, "max_age_days", days, "removed", removed)
	return removed
}

// removeFile は1ファイルを削除する。失敗はログに残してスキップする
func (p *FilePruner) removeFile(f captureFile) bool {
	if err := p.remove(f.path); err != nil {
		p.logger.Warn("ファイルの削除に失敗しました", "path", f.path, "error", err)
		return false
	}
	p.logger.Debug("ファイルを削除しました", "path", f.path)
	return true
}

// listCaptureFiles はディレクトリ直下のキャプチャ画像を列挙する（非再帰）
func (p *FilePruner) listCaptureFiles(dir string) []captureFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("ディレクトリの読み取りに失敗しました", "dir", dir, "error", err)
		}
		return nil
	}

	files := make([]captureFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsCaptureFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			p.logger.Warn("ファイル情報の取得に失敗しました", "name", entry.Name(), "error", err)
			continue
		}
		files = append(files, captureFile{
			path:    filepath.Join(dir, entry.Name()),
			name:    entry.Name(),
			modTime: info.ModTime(),
		})
	}

	return files
}
