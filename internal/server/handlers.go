package server

import (
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"webcamsnap/internal/storage"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <title>webcamsnap</title>
</head>
<body>
    <h1>webcamsnap</h1>
    <p>撮影間隔: <span id="interval">{{.Interval}}</span></p>
    {{if .HasLatest}}
    <p>最終更新: <time id="updated" datetime="{{.Updated.Format "2006-01-02T15:04:05Z07:00"}}">{{.Updated.Format "2006-01-02 15:04:05"}}</time></p>
    <img id="latest" src="/latest.jpg" alt="最新のキャプチャ画像">
    {{else}}
    <p id="empty">まだ画像がありません。</p>
    {{end}}
</body>
</html>
`))

type indexData struct {
	Interval  time.Duration
	HasLatest bool
	Updated   time.Time
}

// handleRoot はルートパスのハンドラ
func (s *Server) handleRoot(c *gin.Context) {
	data := indexData{Interval: s.config.Interval()}
	if info, err := os.Stat(s.latestPath()); err == nil && info.Mode().IsRegular() {
		data.HasLatest = true
		data.Updated = info.ModTime()
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := indexTemplate.Execute(c.Writer, data); err != nil {
		s.logger.Warn("ページの描画に失敗しました", "error", err)
	}
}

// handleLatest は latest ミラーを配信する
func (s *Server) handleLatest(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	path := s.latestPath()
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		c.String(http.StatusNotFound, "%s はまだありません\n", storage.LatestFileName)
		return
	}

	c.File(path)
}
