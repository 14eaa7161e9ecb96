// Package storage はキャプチャ画像の保存先ディレクトリを管理します。
//
// 責務:
//   - サイズ文字列（"5G", "500M" など）のパース
//   - ディレクトリの実ディスク使用量の計測
//   - 剪定ポリシー（none / keep_last / max_age）の適用
//   - 書き込み前の容量チェック（計測 → 判定 → 剪定 → 再計測 → 判定）
//   - キャプチャ画像の保存と latest ミラーの更新
//
// 仕様:
//   - 容量判定は毎回新しく計測した値で行う（キャッシュしない）
//   - 剪定は1回の超過につき1回だけ試行する
//   - 剪定後も超過する場合は ErrQuotaExceeded を返し、呼び出し側はループを停止する
//   - latest ミラーは一時ファイル + rename で置き換える
package storage
