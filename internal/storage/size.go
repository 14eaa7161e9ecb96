package storage

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidSize はサイズ文字列が解釈できないことを表す
var ErrInvalidSize = errors.New("無効なサイズ指定")

var sizePattern = regexp.MustCompile(`^(?i)(\d+)(k|m|g|t|kib|mib|gib|tib)?$`)

// unitExponents は単位ごとの 1024 のべき数
var unitExponents = map[string]int{
	"k": 1, "kib": 1,
	"m": 2, "mib": 2,
	"g": 3, "gib": 3,
	"t": 4, "tib": 4,
}

// ParseSize は "5G" や "500M" のようなサイズ文字列をバイト数に変換する
// 空文字列と "0" は 0（無制限）を返す。単位は常に1024基準。
func ParseSize(s string) (int64, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" || s == "0" {
		return 0, nil
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	exp := unitExponents[strings.ToLower(m[2])]
	for i := 0; i < exp; i++ {
		if n > math.MaxInt64/1024 {
			return 0, fmt.Errorf("%w: %q はオーバーフローします", ErrInvalidSize, s)
		}
		n *= 1024
	}

	return n, nil
}

// FormatSize はバイト数をログ用の読みやすい文字列にする
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 3; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f%ciB", float64(n)/float64(div), "KMGT"[exp])
}
