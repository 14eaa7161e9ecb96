// Package server は最新のキャプチャ画像を配信するHTTPサーバーを提供します。
//
// 責務:
//   - GET / で簡単な案内ページを返す
//   - GET /latest.jpg で latest ミラーを配信する（キャッシュ不可）
//   - グレースフルシャットダウン
//
// DATA_DIR は読み取りのみで、書き込みは撮影ループが行います。
// latest.jpg は原子的に置き換えられるため、配信中に壊れた画像を返すことはありません。
package server
