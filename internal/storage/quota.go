package storage

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrQuotaExceeded は剪定後も容量上限を超えることを表す（致命的）
var ErrQuotaExceeded = errors.New("容量上限を超過しました")

// QuotaExceededError は容量超過の詳細
type QuotaExceededError struct {
	Dir       string
	MaxBytes  int64
	Current   int64
	Delta     int64
	Predicted int64
	Policy    Policy
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %s の予測使用量 %d バイトが上限 %d バイト以上です（剪定ポリシー: %s）",
		ErrQuotaExceeded, e.Dir, e.Predicted, e.MaxBytes, e.Policy)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// IsQuotaExceeded はエラーが容量超過か判定する
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IncomingDelta は書き込みによる正味の増加量を返す
// mirror が有効な場合、タイムスタンプ付きファイルの追加に加えて
// latest ミラーの増分 max(0, incoming-existingLatest) を足す。
func IncomingDelta(incoming, existingLatest int64, mirror bool) int64 {
	if !mirror {
		return incoming
	}
	return incoming + max(0, incoming-existingLatest)
}

// Enforcer は書き込み前に容量上限を守らせる
type Enforcer struct {
	dir        string
	policy     Policy
	accountant Accountant
	pruner     Pruner
	logger     *slog.Logger
}

// NewEnforcer は新しいEnforcerを作成する
func NewEnforcer(dir string, policy Policy, accountant Accountant, pruner Pruner, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		dir:        dir,
		policy:     policy,
		accountant: accountant,
		pruner:     pruner,
		logger:     logger.With("component", "quota"),
	}
}

// measurement は1回の計測結果
type measurement struct {
	current   int64
	predicted int64
}

// EnforceOrFail は incomingDelta バイトの書き込みが可能か判定する
//
// 手順: 計測 → 判定 → （超過なら）剪定 → 再計測 → 判定。
// maxBytes が0なら計測せずに許可する。剪定は1回だけで、
// それでも予測値が maxBytes 以上なら *QuotaExceededError を返す。
func (e *Enforcer) EnforceOrFail(maxBytes, incomingDelta int64) error {
	if maxBytes == 0 {
		return nil
	}

	first := e.measure(incomingDelta)
	if e.fits(first, maxBytes) {
		return nil
	}

	e.logger.Warn("容量上限に達するため剪定を試みます",
		"dir", e.dir,
		"current", first.current,
		"delta", incomingDelta,
		"predicted", first.predicted,
		"max", maxBytes,
		"policy", e.policy.String(),
	)
	removed := e.pruner.Apply(e.policy, e.dir)

	second := e.measure(incomingDelta)
	if e.fits(second, maxBytes) {
		e.logger.Info("剪定により容量を確保しました",
			"removed", removed,
			"freed", first.current-second.current,
			"predicted", second.predicted,
			"max", maxBytes,
		)
		return nil
	}

	return &QuotaExceededError{
		Dir:       e.dir,
		MaxBytes:  maxBytes,
		Current:   second.current,
		Delta:     incomingDelta,
		Predicted: second.predicted,
		Policy:    e.policy,
	}
}

// measure は毎回新しく使用量を計測する
func (e *Enforcer) measure(delta int64) measurement {
	current := e.accountant.TotalOccupiedBytes(e.dir)
	return measurement{current: current, predicted: current + delta}
}

// fits は予測値が上限未満かを判定する（上限ちょうどは超過扱い）
func (e *Enforcer) fits(m measurement, maxBytes int64) bool {
	return m.predicted < maxBytes
}
