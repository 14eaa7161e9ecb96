package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"webcamsnap/internal/camera"
	"webcamsnap/internal/storage"
)

// Config はアプリケーション全体の設定を保持する構造体
// 起動時に一度だけ構築し、以降は変更しない。
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Notify  NotifyConfig  `yaml:"notify"`

	// Warnings は起動を止めずに補正した設定値（ロガー作成後に出力する）
	Warnings []Warning `yaml:"-"`
}

// CaptureConfig は撮影の設定
type CaptureConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds" env:"INTERVAL_SECONDS" validate:"min=1"`
	Device          string `yaml:"device" env:"CAMERA_DEVICE" validate:"required"`
	Resolution      string `yaml:"resolution" env:"RESOLUTION"`
	JPEGQuality     int    `yaml:"jpeg_quality" env:"JPEG_QUALITY"`
	Tool            string `yaml:"tool" env:"CAPTURE_TOOL" validate:"oneof=fswebcam ffmpeg"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" env:"CAPTURE_TIMEOUT_SECONDS" validate:"min=1"`
	TempDir         string `yaml:"temp_dir" env:"TEMP_DIR" validate:"required"`
}

// StorageConfig は保存先と容量制限の設定
type StorageConfig struct {
	DataDir      string `yaml:"data_dir" env:"DATA_DIR" validate:"required"`
	MaxDataSize  string `yaml:"max_data_size" env:"MAX_DATA_SIZE"`
	MaxBytes     int64  `yaml:"-"` // MaxDataSize をパースした値（0は無制限）
	PruneMode    string `yaml:"prune_mode" env:"PRUNE_MODE"`
	KeepLastN    int    `yaml:"keep_last_n" env:"KEEP_LAST_N"`
	MaxAgeDays   int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	LatestMirror bool   `yaml:"latest_mirror" env:"LATEST_MIRROR"`
}

// UploadConfig はAPIへのアップロード設定
type UploadConfig struct {
	Enabled        bool   `yaml:"enabled" env:"PUSH_TO_API"`
	URL            string `yaml:"url" env:"API_URL"`
	Token          string `yaml:"token" env:"API_TOKEN"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"UPLOAD_TIMEOUT_SECONDS" validate:"min=1"`
}

// ServerConfig は最新画像配信用HTTPサーバーの設定
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" env:"SERVE_LATEST"`
	Host    string `yaml:"host" env:"SERVER_HOST"` // リッスンするホスト
	Port    int    `yaml:"port" env:"SERVER_PORT"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	File       string `yaml:"file" env:"LOG_FILE"`                 // 空なら標準出力のみ
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB"`   // ローテーションするサイズ(MB)
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS"` // 保持日数
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`   // 保持世代数
}

// NotifyConfig は撮影イベントのMQTT通知設定
type NotifyConfig struct {
	Broker   string `yaml:"broker" env:"MQTT_BROKER"` // 空なら通知しない
	Topic    string `yaml:"topic" env:"MQTT_TOPIC"`
	ClientID string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
	Username string `yaml:"username" env:"MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTT_PASSWORD"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			IntervalSeconds: 60,
			Device:          "/dev/video0",
			Resolution:      "1280x720",
			JPEGQuality:     85,
			Tool:            string(camera.ToolFswebcam),
			TimeoutSeconds:  30,
			TempDir:         filepath.Join(os.TempDir(), "webcamsnap"),
		},
		Storage: StorageConfig{
			DataDir:     "/data",
			MaxDataSize: "0",
			PruneMode:   string(storage.ModeNone),
		},
		Upload: UploadConfig{
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
		Notify: NotifyConfig{
			Topic: "webcamsnap/captures",
		},
	}
}

// Load は撮影デーモン用の設定を読み込む
// 優先順位: デフォルト < CONFIG_FILE（YAML） < 環境変数
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if err := camera.CheckDevice(cfg.Capture.Device); err != nil {
		return nil, &Error{Key: "CAMERA_DEVICE", Value: cfg.Capture.Device, Reason: "デバイスが存在しません", Err: err}
	}
	return cfg, nil
}

// LoadForServer は配信サーバー単体用の設定を読み込む
// カメラデバイスの存在は確認しない。overrides（コマンドラインオプションなど）は検証前に適用する。
func LoadForServer(overrides ...func(*Config)) (*Config, error) {
	return load(append([]func(*Config){func(c *Config) { c.Server.Enabled = true }}, overrides...)...)
}

func load(overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}

	// 最新画像の配信には latest ミラーが必要
	if cfg.Server.Enabled {
		cfg.Storage.LatestMirror = true
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile はYAMLファイルの値でデフォルトを上書きする
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Key: "CONFIG_FILE", Value: path, Reason: "読み込みに失敗", Err: err}
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &Error{Key: "CONFIG_FILE", Value: path, Reason: "YAMLの解析に失敗", Err: err}
	}
	return nil
}

// applyEnv は環境変数の値で上書きする
func (c *Config) applyEnv() error {
	e := &envReader{lookup: os.LookupEnv}

	c.Capture.IntervalSeconds = e.int("INTERVAL_SECONDS", c.Capture.IntervalSeconds)
	c.Capture.Device = e.string("CAMERA_DEVICE", c.Capture.Device)
	c.Capture.Resolution = e.string("RESOLUTION", c.Capture.Resolution)
	c.Capture.JPEGQuality = e.int("JPEG_QUALITY", c.Capture.JPEGQuality)
	c.Capture.Tool = e.string("CAPTURE_TOOL", c.Capture.Tool)
	c.Capture.TimeoutSeconds = e.int("CAPTURE_TIMEOUT_SECONDS", c.Capture.TimeoutSeconds)
	c.Capture.TempDir = e.string("TEMP_DIR", c.Capture.TempDir)

	c.Storage.DataDir = e.string("DATA_DIR", c.Storage.DataDir)
	c.Storage.MaxDataSize = e.string("MAX_DATA_SIZE", c.Storage.MaxDataSize)
	c.Storage.PruneMode = e.string("PRUNE_MODE", c.Storage.PruneMode)
	// 剪定パラメータの不正は剪定時の警告で済ませる
	c.Storage.KeepLastN = e.intOrWarn("KEEP_LAST_N", c.Storage.KeepLastN)
	c.Storage.MaxAgeDays = e.intOrWarn("MAX_AGE_DAYS", c.Storage.MaxAgeDays)
	c.Storage.LatestMirror = e.bool("LATEST_MIRROR", c.Storage.LatestMirror)

	c.Upload.Enabled = e.bool("PUSH_TO_API", c.Upload.Enabled)
	c.Upload.URL = e.string("API_URL", c.Upload.URL)
	c.Upload.Token = e.string("API_TOKEN", c.Upload.Token)
	c.Upload.TimeoutSeconds = e.int("UPLOAD_TIMEOUT_SECONDS", c.Upload.TimeoutSeconds)

	c.Server.Enabled = e.bool("SERVE_LATEST", c.Server.Enabled)
	c.Server.Host = e.string("SERVER_HOST", c.Server.Host)
	c.Server.Port = e.int("SERVER_PORT", c.Server.Port)

	c.Log.Level = strings.ToLower(e.string("LOG_LEVEL", c.Log.Level))
	c.Log.File = e.string("LOG_FILE", c.Log.File)
	c.Log.MaxSizeMB = e.int("LOG_MAX_SIZE_MB", c.Log.MaxSizeMB)
	c.Log.MaxAgeDays = e.int("LOG_MAX_AGE_DAYS", c.Log.MaxAgeDays)
	c.Log.MaxBackups = e.int("LOG_MAX_BACKUPS", c.Log.MaxBackups)

	c.Notify.Broker = e.string("MQTT_BROKER", c.Notify.Broker)
	c.Notify.Topic = e.string("MQTT_TOPIC", c.Notify.Topic)
	c.Notify.ClientID = e.string("MQTT_CLIENT_ID", c.Notify.ClientID)
	c.Notify.Username = e.string("MQTT_USERNAME", c.Notify.Username)
	c.Notify.Password = e.string("MQTT_PASSWORD", c.Notify.Password)

	c.Warnings = append(c.Warnings, e.warnings...)
	return e.err
}

var validate = newValidator()

// newValidator はエラーに環境変数名が出るバリデータを作成する
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate は設定の妥当性を検証する
// MAX_DATA_SIZE のパース結果は Storage.MaxBytes に格納する。
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &Error{Key: fe.Field(), Value: fmt.Sprint(fe.Value()), Reason: describeTag(fe)}
		}
		return &Error{Reason: "検証に失敗", Err: err}
	}

	maxBytes, err := storage.ParseSize(c.Storage.MaxDataSize)
	if err != nil {
		return &Error{Key: "MAX_DATA_SIZE", Value: c.Storage.MaxDataSize, Reason: "サイズとして解釈できません", Err: err}
	}
	c.Storage.MaxBytes = maxBytes

	// 撮影ツールの品質指定は 0..100 に丸める
	if q := c.Capture.JPEGQuality; q < 0 || q > 100 {
		clamped := min(max(q, 0), 100)
		c.Warnings = append(c.Warnings, Warning{
			Key:    "JPEG_QUALITY",
			Value:  fmt.Sprint(q),
			Reason: fmt.Sprintf("0..100 の範囲外のため %d に丸めます", clamped),
		})
		c.Capture.JPEGQuality = clamped
	}

	if c.Upload.Enabled {
		if strings.TrimSpace(c.Upload.URL) == "" {
			return &Error{Key: "API_URL", Reason: "PUSH_TO_API が有効な場合は必須です"}
		}
		if u, err := url.ParseRequestURI(c.Upload.URL); err != nil || u.Host == "" {
			return &Error{Key: "API_URL", Value: c.Upload.URL, Reason: "URLとして解釈できません", Err: err}
		}
	}

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return &Error{Key: "SERVER_PORT", Value: fmt.Sprint(c.Server.Port), Reason: "無効なポート番号"}
	}

	return nil
}

// describeTag はバリデーションタグを説明文にする
func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須です"
	case "min":
		return fmt.Sprintf("%s 以上である必要があります", fe.Param())
	case "max":
		return fmt.Sprintf("%s 以下である必要があります", fe.Param())
	case "oneof":
		return fmt.Sprintf("%s のいずれかである必要があります", fe.Param())
	default:
		return fmt.Sprintf("検証 %s に失敗", fe.Tag())
	}
}

// Interval は撮影間隔を返す
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Capture.IntervalSeconds) * time.Second
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CaptureSettings は撮影設定を返す
func (c *Config) CaptureSettings() camera.Settings {
	return camera.Settings{
		Device:     c.Capture.Device,
		Resolution: c.Capture.Resolution,
		Quality:    c.Capture.JPEGQuality,
		Tool:       camera.Tool(c.Capture.Tool),
		Timeout:    time.Duration(c.Capture.TimeoutSeconds) * time.Second,
	}
}

// PrunePolicy は剪定ポリシーを返す
// 未知のモード名もそのまま渡し、剪定時に警告として扱う。
func (c *Config) PrunePolicy() storage.Policy {
	return storage.Policy{
		Mode:       storage.Mode(strings.ToLower(strings.TrimSpace(c.Storage.PruneMode))),
		KeepLast:   c.Storage.KeepLastN,
		MaxAgeDays: c.Storage.MaxAgeDays,
	}
}

// UploadTimeout はアップロードのタイムアウトを返す
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.TimeoutSeconds) * time.Second
}
