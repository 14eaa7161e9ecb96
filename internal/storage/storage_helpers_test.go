package storage

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// writeFileAt はファイルを作成して更新時刻を設定する
func writeFileAt(t *testing.T, dir, name string, size int, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xFF}, size), 0o644); err != nil {
		t.Fatalf("ファイルの作成に失敗: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("更新時刻の設定に失敗: %v", err)
	}
	return path
}

// listNames はディレクトリ直下のファイル名を返す
func listNames(t *testing.T, dir string) map[string]bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir に失敗: %v", err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	return names
}

// fakeAccountant は呼び出し回数を数え、順番に使用量を返す
type fakeAccountant struct {
	usages []int64
	sizes  map[string]int64
	calls  int
}

func (f *fakeAccountant) TotalOccupiedBytes(string) int64 {
	i := f.calls
	f.calls++
	if i >= len(f.usages) {
		return f.usages[len(f.usages)-1]
	}
	return f.usages[i]
}

func (f *fakeAccountant) SizeOf(path string) (int64, error) {
	if n, ok := f.sizes[filepath.Base(path)]; ok {
		return n, nil
	}
	return 0, ErrNotFound
}

// fakePruner は Apply の呼び出しを記録する
type fakePruner struct {
	calls    int
	policies []Policy
	removed  int
}

func (f *fakePruner) Apply(policy Policy, _ string) int {
	f.calls++
	f.policies = append(f.policies, policy)
	return f.removed
}
