// Package upload はキャプチャ画像をHTTP APIへ送信する。
package upload

import (
	"bytes"
	"context"
	_ "crypto/sha256" // digest.Canonical
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"webcamsnap/internal/camera"
)

const defaultTimeout = 30 * time.Second

// StatusError は2xx以外の応答を表す
type StatusError struct {
	URL        string
	StatusCode int
	Body       string // 応答ボディの先頭部分
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("アップロードが拒否されました: %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("アップロードが拒否されました: %s: HTTP %d", e.URL, e.StatusCode)
}

// Result は成功したアップロードの情報
type Result struct {
	RequestID  string
	Digest     digest.Digest
	StatusCode int
}

// Uploader はフレームを multipart/form-data でPOSTする
type Uploader struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

// NewUploader は新しいUploaderを作成する
// client が nil の場合はタイムアウト付きのクライアントを作成する。
func NewUploader(url, token string, timeout time.Duration, client *http.Client, logger *slog.Logger) *Uploader {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = newClient(timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		url:    url,
		token:  token,
		client: client,
		logger: logger.With("component", "upload"),
	}
}

func newClient(timeout time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: base,
		Timeout:   timeout,
	}
}

// Upload はフレームを送信する
// 送信に失敗しても一時ファイルは削除しない（呼び出し側の責務）。
func (u *Uploader) Upload(ctx context.Context, frame camera.Frame) (*Result, error) {
	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return nil, fmt.Errorf("フレームの読み込みに失敗: %w", err)
	}

	dgst := digest.FromBytes(data)
	body, contentType, err := buildBody(frame, data, dgst)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	requestID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("リクエストIDの生成に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID.String())
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("アップロードに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			URL:        u.url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	u.logger.Debug("アップロード完了",
		"file", frame.Name,
		"request_id", requestID.String(),
		"digest", dgst.String(),
		"status", resp.StatusCode)

	return &Result{
		RequestID:  requestID.String(),
		Digest:     dgst,
		StatusCode: resp.StatusCode,
	}, nil
}

// buildBody は multipart のリクエストボディを作成する
// フィールド: file, filename, timestamp, digest
func buildBody(frame camera.Frame, data []byte, dgst digest.Digest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, frame.Name))
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	fields := []struct{ name, value string }{
		{"filename", frame.Name},
		{"timestamp", strconv.FormatInt(frame.Timestamp.Unix(), 10)},
		{"digest", dgst.String()},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
