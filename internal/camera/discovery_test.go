package camera

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckDevice(t *testing.T) {
	dev := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(dev, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CheckDevice(dev); err != nil {
		t.Errorf("存在するデバイスはエラーにならないはず: %v", err)
	}

	// 存在しないデバイスをテスト
	if err := CheckDevice("/dev/video999"); err == nil {
		t.Error("存在しないデバイスはエラーのはず")
	}

	// 空のパスをテスト
	if err := CheckDevice(""); err == nil {
		t.Error("空のパスはエラーのはず")
	}
}

func TestParseCardType(t *testing.T) {
	testCases := []struct {
		name   string
		output string
		want   string
	}{
		{
			name: "通常の出力",
			output: `Driver Info:
	Driver name      : uvcvideo
	Card type        : HD Pro Webcam C920
	Bus info         : usb-0000:00:14.0-1`,
			want: "HD Pro Webcam C920",
		},
		{
			name:   "Card type がない",
			output: "Driver Info:\n\tDriver name : uvcvideo\n",
			want:   "",
		},
		{
			name:   "空の出力",
			output: "",
			want:   "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseCardType(tc.output); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCheckTool(t *testing.T) {
	if err := CheckTool(Tool("webcamsnap-no-such-tool")); err == nil {
		t.Error("存在しないコマンドはエラーのはず")
	}
}
