//go:build !unix

package storage

import "io/fs"

// allocatedSize はブロック情報が取れない環境では論理サイズを返す
func allocatedSize(info fs.FileInfo) int64 {
	return info.Size()
}
