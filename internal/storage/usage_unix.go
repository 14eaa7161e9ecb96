//go:build unix

package storage

import (
	"io/fs"
	"syscall"
)

// allocatedSize はブロック割り当てサイズ（st_blocks × 512）を返す
func allocatedSize(info fs.FileInfo) int64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return int64(st.Blocks) * 512
	}
	return info.Size()
}
