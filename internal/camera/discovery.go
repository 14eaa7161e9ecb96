package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CheckDevice はデバイスファイルが存在するか確認する
func CheckDevice(device string) error {
	if device == "" {
		return fmt.Errorf("カメラデバイスが指定されていません")
	}
	if _, err := os.Stat(device); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("カメラデバイスが見つかりません: %s", device)
		}
		return fmt.Errorf("カメラデバイスを確認できません: %s: %w", device, err)
	}
	return nil
}

// DeviceName はv4l2-ctlを使って実際のデバイス名を取得する
// v4l2-ctl がない場合やデバイス名が取れない場合は空文字列を返す。
func DeviceName(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--info").Output()
	if err != nil {
		return ""
	}
	return parseCardType(string(output))
}

// parseCardType は "Card type" の行からカメラ名を抽出する
func parseCardType(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// CheckTool は撮影コマンドがインストールされているか確認する
func CheckTool(tool Tool) error {
	if tool == "" {
		tool = ToolFswebcam
	}
	if _, err := exec.LookPath(string(tool)); err != nil {
		return fmt.Errorf("%s が見つかりません。インストールしてください: %w", tool, err)
	}
	return nil
}
