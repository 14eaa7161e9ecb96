// Package camera カメラデバイスからの1枚撮影を担う
//
// # 責務
// - 外部コマンド（fswebcam / ffmpeg）によるJPEG画像の撮影
// - 起動時のデバイス存在確認
// - v4l2-ctl によるデバイス名の取得（ログ用）
//
// # 仕様
// - 撮影結果は一時ファイルとして書き出す（画像のデコードはしない）
// - 撮影の失敗は CaptureError として返し、呼び出し側は次の周期で再試行する
//
// # 前提要件
//   - fswebcam または ffmpeg
//     Ubuntu/Debian: sudo apt install fswebcam ffmpeg
//   - v4l-utils: デバイス名の取得に使用（任意）
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
