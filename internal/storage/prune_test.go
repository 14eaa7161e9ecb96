package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFilePruner_KeepLast(t *testing.T) {
	base := time.Now().Add(-time.Hour)

	testCases := []struct {
		name     string
		files    int
		keep     int
		wantLeft int
		wantGone int
	}{
		{"件数が上限以下なら何もしない", 3, 5, 3, 0},
		{"件数が上限ちょうど", 4, 4, 4, 0},
		{"古いファイルから削除", 10, 3, 3, 7},
		{"1件だけ残す", 5, 1, 1, 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			mtimes := make(map[string]time.Time)
			for i := 0; i < tc.files; i++ {
				name := fmt.Sprintf("capture_%d.jpg", 1700000000+i)
				mt := base.Add(time.Duration(i) * time.Minute)
				writeFileAt(t, dir, name, 100, mt)
				mtimes[name] = mt
			}

			p := NewFilePruner(discardLogger())
			removed := p.Apply(Policy{Mode: ModeKeepLast, KeepLast: tc.keep}, dir)
			if removed != tc.wantGone {
				t.Errorf("削除件数: got %d, want %d", removed, tc.wantGone)
			}

			left := listNames(t, dir)
			if len(left) != tc.wantLeft {
				t.Fatalf("残存件数: got %d, want %d", len(left), tc.wantLeft)
			}

			// 残ったファイルは削除されたどのファイルよりも新しい
			for kept := range left {
				for name, mt := range mtimes {
					if left[name] {
						continue
					}
					if mtimes[kept].Before(mt) {
						t.Errorf("%s が削除されたのに古い %s が残っています", name, kept)
					}
				}
			}
		})
	}
}

func TestFilePruner_KeepLastTieBreakIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	same := time.Now().Add(-time.Hour)
	for _, name := range []string{"capture_1.jpg", "capture_2.jpg", "capture_3.jpg"} {
		writeFileAt(t, dir, name, 10, same)
	}

	p := NewFilePruner(discardLogger())
	if got := p.Apply(Policy{Mode: ModeKeepLast, KeepLast: 2}, dir); got != 1 {
		t.Fatalf("削除件数: got %d, want 1", got)
	}

	left := listNames(t, dir)
	if !left["capture_3.jpg"] || !left["capture_2.jpg"] || left["capture_1.jpg"] {
		t.Errorf("同時刻ではファイル名の降順で残すはず: %v", left)
	}

	// 2回目は何も削除しない
	if got := p.Apply(Policy{Mode: ModeKeepLast, KeepLast: 2}, dir); got != 0 {
		t.Errorf("2回目の削除件数: got %d, want 0", got)
	}
}

func TestFilePruner_IgnoresNonCaptureFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-100 * 24 * time.Hour)
	writeFileAt(t, dir, LatestFileName, 10, old)
	writeFileAt(t, dir, "notes.txt", 10, old)
	writeFileAt(t, dir, "capture_1.jpg", 10, old)
	writeFileAt(t, dir, "capture_2.jpg", 10, old.Add(time.Minute))
	if err := os.Mkdir(filepath.Join(dir, "capture_sub.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}

	p := NewFilePruner(discardLogger())
	p.Apply(Policy{Mode: ModeKeepLast, KeepLast: 1}, dir)
	p.Apply(Policy{Mode: ModeMaxAge, MaxAgeDays: 1}, dir)

	left := listNames(t, dir)
	for _, name := range []string{LatestFileName, "notes.txt", "capture_sub.jpg"} {
		if !left[name] {
			t.Errorf("%s は剪定対象外のはず", name)
		}
	}
	if left["capture_1.jpg"] || left["capture_2.jpg"] {
		t.Errorf("古いキャプチャ画像が残っています: %v", left)
	}
}

func TestFilePruner_MaxAge(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	writeFileAt(t, dir, "capture_new.jpg", 10, now.Add(-time.Hour))
	writeFileAt(t, dir, "capture_edge.jpg", 10, now.Add(-48*time.Hour))
	writeFileAt(t, dir, "capture_old.jpg", 10, now.Add(-48*time.Hour-time.Second))
	writeFileAt(t, dir, "capture_older.jpg", 10, now.Add(-30*24*time.Hour))

	p := NewFilePruner(discardLogger())
	p.now = func() time.Time { return now }

	removed := p.Apply(Policy{Mode: ModeMaxAge, MaxAgeDays: 2}, dir)
	if removed != 2 {
		t.Errorf("削除件数: got %d, want 2", removed)
	}

	left := listNames(t, dir)
	if !left["capture_new.jpg"] || !left["capture_edge.jpg"] {
		t.Errorf("ちょうど2日のファイルは残るはず: %v", left)
	}
	if left["capture_old.jpg"] || left["capture_older.jpg"] {
		t.Errorf("2日を超えたファイルは削除されるはず: %v", left)
	}

	// 残ったファイルはすべて d×86400 秒以内
	for name := range left {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if now.Sub(info.ModTime()) > 2*86400*time.Second {
			t.Errorf("%s が古すぎます", name)
		}
	}
}

func TestFilePruner_InvalidPolicyIsWarningOnly(t *testing.T) {
	testCases := []struct {
		name    string
		policy  Policy
		wantLog string
	}{
		{"未知のモード", Policy{Mode: "bogus"}, "未知の剪定モード"},
		{"KEEP_LAST_N=0", Policy{Mode: ModeKeepLast, KeepLast: 0}, "KEEP_LAST_N"},
		{"MAX_AGE_DAYS=0", Policy{Mode: ModeMaxAge, MaxAgeDays: 0}, "MAX_AGE_DAYS"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			old := time.Now().Add(-365 * 24 * time.Hour)
			for i := 0; i < 3; i++ {
				writeFileAt(t, dir, fmt.Sprintf("capture_%d.jpg", i), 10, old)
			}

			var buf bytes.Buffer
			p := NewFilePruner(bufferLogger(&buf))
			if got := p.Apply(tc.policy, dir); got != 0 {
				t.Errorf("削除件数: got %d, want 0", got)
			}
			if n := len(listNames(t, dir)); n != 3 {
				t.Errorf("ファイルは削除されないはず: 残り %d", n)
			}
			if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), tc.wantLog) {
				t.Errorf("警告ログが出ていません: %s", buf.String())
			}
		})
	}
}

func TestFilePruner_NoneAndMissingDir(t *testing.T) {
	p := NewFilePruner(discardLogger())

	dir := t.TempDir()
	writeFileAt(t, dir, "capture_1.jpg", 10, time.Now().Add(-100*24*time.Hour))
	if got := p.Apply(Policy{Mode: ModeNone}, dir); got != 0 {
		t.Errorf("none: got %d, want 0", got)
	}

	missing := filepath.Join(dir, "missing")
	if got := p.Apply(Policy{Mode: ModeKeepLast, KeepLast: 1}, missing); got != 0 {
		t.Errorf("存在しないディレクトリ: got %d, want 0", got)
	}
}

func TestFilePruner_RemoveFailureIsSkipped(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		writeFileAt(t, dir, fmt.Sprintf("capture_%d.jpg", i), 10, base.Add(time.Duration(i)*time.Minute))
	}

	p := NewFilePruner(discardLogger())
	p.remove = func(name string) error {
		if filepath.Base(name) == "capture_0.jpg" {
			return errors.New("permission denied")
		}
		return os.Remove(name)
	}

	if got := p.Apply(Policy{Mode: ModeKeepLast, KeepLast: 1}, dir); got != 2 {
		t.Errorf("削除件数: got %d, want 2", got)
	}
	left := listNames(t, dir)
	if !left["capture_0.jpg"] || !left["capture_3.jpg"] {
		t.Errorf("削除に失敗したファイルと最新ファイルが残るはず: %v", left)
	}
}

func TestPolicyString(t *testing.T) {
	testCases := []struct {
		policy Policy
		want   string
	}{
		{Policy{}, "none"},
		{Policy{Mode: ModeKeepLast, KeepLast: 3}, "keep_last(3)"},
		{Policy{Mode: ModeMaxAge, MaxAgeDays: 7}, "max_age(7d)"},
		{Policy{Mode: "bogus"}, "unknown(bogus)"},
	}
	for _, tc := range testCases {
		if got := tc.policy.String(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}
