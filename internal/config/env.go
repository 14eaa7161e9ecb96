package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error は起動時の設定エラー（致命的）
type Error struct {
	Key    string // 環境変数名
	Value  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("設定 %s が不正です: %s", e.Key, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (値: %q)", e.Value)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError はエラーが設定エラーか判定する
func IsConfigError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Warning は起動を止めない設定値の問題
type Warning struct {
	Key    string
	Value  string
	Reason string
}

// envReader は環境変数を型付きで読み取る
// 最初に見つかったエラーだけを保持し、以降の読み取りはデフォルト値を返す。
type envReader struct {
	lookup   func(string) (string, bool)
	err      error
	warnings []Warning
}

// string は環境変数を取得し、設定されていない場合はデフォルト値を返す
func (r *envReader) string(key, defaultValue string) string {
	if value, ok := r.lookup(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// int は環境変数を整数として取得する。整数でなければエラーを記録する
func (r *envReader) int(key string, defaultValue int) int {
	value, ok := r.lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.fail(&Error{Key: key, Value: value, Reason: "整数として解釈できません"})
		return defaultValue
	}
	return n
}

// intOrWarn は int と同じだが、整数でなければ警告を記録して 0 を返す
// 0 は剪定側で不正なパラメータとして扱われ、剪定がスキップされる。
func (r *envReader) intOrWarn(key string, defaultValue int) int {
	value, ok := r.lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.warnings = append(r.warnings, Warning{Key: key, Value: value, Reason: "整数として解釈できないため 0 として扱います"})
		return 0
	}
	return n
}

// bool は環境変数を真偽値として取得する
func (r *envReader) bool(key string, defaultValue bool) bool {
	value, ok := r.lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	b, err := parseBool(value)
	if err != nil {
		r.fail(&Error{Key: key, Value: value, Reason: "真偽値として解釈できません"})
		return defaultValue
	}
	return b
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// parseBool は true/false に加えて yes/no, on/off を受け付ける
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("不正な真偽値: %q", s)
}
