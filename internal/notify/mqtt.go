package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

var _ Publisher = (*MQTTPublisher)(nil)

const (
	// DefaultTopic はイベントを送るデフォルトのトピック
	DefaultTopic = "webcamsnap/captures"

	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
)

// MQTTConfig はMQTT通知の設定
type MQTTConfig struct {
	Broker   string // 例: tcp://broker.example.com:1883
	Topic    string
	ClientID string // 空ならランダムに生成
	Username string
	Password string
	Logger   *slog.Logger
}

// MQTTPublisher はイベントをMQTTブローカーへ送る
type MQTTPublisher struct {
	cfg    MQTTConfig
	client paho.Client
	log    *slog.Logger
}

// NewMQTTPublisher は新しいMQTTPublisherを作成する（接続は Connect で行う）
func NewMQTTPublisher(cfg MQTTConfig) *MQTTPublisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "webcamsnap-" + uuid.NewString()[:8]
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &MQTTPublisher{
		cfg: cfg,
		log: cfg.Logger.With("component", "notify"),
	}
}

// Connect はブローカーに接続する
// 初回接続は一度だけ試み、失敗したらクライアントを停止する。
// 接続後の切断は paho の自動再接続に任せる。
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	if p.cfg.Broker == "" {
		return errors.New("MQTTブローカーが指定されていません")
	}

	opts := paho.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(p.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetCleanSession(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("MQTT接続が切断されました", "error", err)
		}).
		SetOnConnectHandler(func(paho.Client) {
			p.log.Info("MQTTブローカーに接続しました", "broker", p.cfg.Broker)
		})

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
	}
	if p.cfg.Password != "" {
		opts.SetPassword(p.cfg.Password)
	}

	client := paho.NewClient(opts)
	if err := wait(ctx, client.Connect(), connectTimeout, "接続"); err != nil {
		client.Disconnect(0)
		return err
	}
	p.client = client
	return nil
}

// Publish はイベントをJSONとして送信する
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	if p.client == nil || !p.client.IsConnected() {
		return errors.New("MQTTブローカーに接続されていません")
	}
	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}
	return wait(ctx, p.client.Publish(p.cfg.Topic, 1, false, payload), publishTimeout, "送信")
}

// Close はブローカーから切断する
func (p *MQTTPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(250)
	}
	return nil
}

// wait はトークンの完了をコンテキストかタイムアウトまで待つ
func wait(ctx context.Context, token paho.Token, timeout time.Duration, op string) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("MQTT%sに失敗: %w", op, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("MQTT%sがタイムアウトしました", op)
	case <-ctx.Done():
		return ctx.Err()
	}
}
