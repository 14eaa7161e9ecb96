// Package snapshot は撮影と送信・保存を繰り返すメインループを提供する。
//
// 1サイクルは次の状態を順に遷移する。
//
//	Idle → Capturing → Uploading → Sleeping → Idle
//	Idle → Capturing → Enforcing → Persisting → Sleeping → Idle
//
// 撮影やアップロードの失敗は警告として記録し、次のサイクルで再試行する。
// 容量上限を超えた場合のみ Stopped に遷移してループを終了する。
package snapshot
