package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/openplatform/internal/config"
	"github.com/nextlevelbuilder/openplatform/pkg/platform"
)

const dingTalkShim = `
var dd = {
  config: function (c) {},
  ready: function (fn) { setTimeout(fn, 1); },
  error: function (fn) {},
  runtime: { permission: { requestAuthCode: function (o) { o.onSuccess({ code: "code-" + o.corpId }); } } },
  biz: {
    util: {
      scan: function (o) { o.onSuccess({ text: "read:" + o.type }); },
      share: function (o) { o.onSuccess({ url: o.url }); }
    },
    navigation: { setRight: function (o) { o.onSuccess(); } }
  }
};
`

// writeSetup creates a config with one DingTalk shim and returns its path.
func writeSetup(t *testing.T, shim string) string {
	t.Helper()
	t.Setenv(config.EnvSignatureURL, "")
	t.Setenv(config.EnvPageURL, "")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shim.js"), []byte(shim), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := `{
  pageUrl: "https://h5.example.com/app?corpId=ding1&agAppId=biz9",
  host: { mode: "script", scripts: ["shim.js"] },
  log: { level: "error" },
}`
	p := filepath.Join(dir, "config.json5")
	if err := os.WriteFile(p, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, s)
	}
	return m
}

func TestDetect(t *testing.T) {
	cfgPath := writeSetup(t, dingTalkShim)
	out, err := run(t, "--config", cfgPath, "detect", "--json")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	m := decodeJSON(t, out)
	if m["platform"] != "dingtalk" || m["key"] != "corpId" || m["businessAppId"] != "biz9" {
		t.Errorf("detect output = %v", m)
	}
}

func TestDetect_NoBridge(t *testing.T) {
	cfgPath := writeSetup(t, "var nothing = {};")
	_, err := run(t, "--config", cfgPath, "detect")
	if !errors.Is(err, platform.ErrUnknownPlatform) {
		t.Fatalf("err = %v, want ErrUnknownPlatform", err)
	}
}

func TestAuth(t *testing.T) {
	cfgPath := writeSetup(t, dingTalkShim)
	out, err := run(t, "--config", cfgPath, "auth", "--json")
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	m := decodeJSON(t, out)
	if m["code"] != "code-ding1" || m["agAppId"] != "biz9" {
		t.Errorf("auth output = %v", m)
	}
}

func TestScan_TableOutput(t *testing.T) {
	cfgPath := writeSetup(t, dingTalkShim)
	out, err := run(t, "--config", cfgPath, "scan", "--type", "qrCode")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "read:qrCode") {
		t.Errorf("scan output missing content:\n%s", out)
	}
}

func TestScan_BadType(t *testing.T) {
	cfgPath := writeSetup(t, dingTalkShim)
	if _, err := run(t, "--config", cfgPath, "scan", "--type", "dataMatrix"); err == nil {
		t.Fatal("expected error for unknown scan type")
	}
}

func TestShare_DebugSkipsInit(t *testing.T) {
	// No ready callback ever fires, so only the debug path can succeed.
	shim := strings.Replace(dingTalkShim, "setTimeout(fn, 1);", "", 1)
	cfgPath := writeSetup(t, shim)
	out, err := run(t, "--config", cfgPath, "share", "--debug", "--url", "https://x/y", "--json")
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	m := decodeJSON(t, out)
	if m["url"] != "https://x/y" {
		t.Errorf("share output = %v", m)
	}
}

func TestForcedPlatformWithoutBridge(t *testing.T) {
	cfgPath := writeSetup(t, dingTalkShim)
	_, err := run(t, "--config", cfgPath, "--platform", "lark", "auth")
	if !errors.Is(err, platform.ErrBridgeUnavailable) {
		t.Fatalf("err = %v, want ErrBridgeUnavailable", err)
	}
}

func TestQR(t *testing.T) {
	out, err := run(t, "qr", "https://h5.example.com/app")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "https://h5.example.com/app") || len(out) < 100 {
		t.Errorf("unexpected qr output:\n%s", out)
	}

	png := filepath.Join(t.TempDir(), "page.png")
	if _, err := run(t, "qr", "https://h5.example.com/app", "-o", png, "--size", "128"); err != nil {
		t.Fatalf("qr -o: %v", err)
	}
	if fi, err := os.Stat(png); err != nil || fi.Size() == 0 {
		t.Fatalf("png not written: %v", err)
	}
}

func TestConfigShowRedacts(t *testing.T) {
	t.Setenv(config.EnvSignatureURL, "https://user:pw@sign.example.com/sig?token=abc&app=1")
	t.Setenv(config.EnvPageURL, "")
	out, err := run(t, "--config", filepath.Join(t.TempDir(), "none.json5"), "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "pw@") || strings.Contains(out, "token=abc") {
		t.Errorf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, "app=1") {
		t.Errorf("non-secret query dropped:\n%s", out)
	}
}

func TestParseScanTypes(t *testing.T) {
	got, err := parseScanTypes([]string{"barCode", "qrCode"})
	if err != nil || len(got) != 2 || got[0] != platform.ScanBarCode {
		t.Fatalf("parseScanTypes = %v, %v", got, err)
	}
	if got, _ := parseScanTypes(nil); len(got) != 0 {
		t.Errorf("empty input should yield no types, got %v", got)
	}
}

func TestOnboard_NonInteractive(t *testing.T) {
	t.Setenv(config.EnvSignatureURL, "https://sign.example.com/sig")
	t.Setenv(config.EnvPageURL, "")
	cfgPath := filepath.Join(t.TempDir(), "op", "config.json5")

	out, err := run(t, "--config", cfgPath, "--platform", "dd", "--page-url", "https://h5/app?corpId=c", "onboard", "--non-interactive")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if !strings.Contains(out, "Config saved") {
		t.Errorf("unexpected output:\n%s", out)
	}

	t.Setenv(config.EnvSignatureURL, "")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform != "dingtalk" || cfg.PageURL != "https://h5/app?corpId=c" || cfg.SignatureURL != "https://sign.example.com/sig" {
		t.Errorf("saved config = %+v", cfg)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a.js, ,b.js ")
	if len(got) != 2 || got[0] != "a.js" || got[1] != "b.js" {
		t.Errorf("splitList = %q", got)
	}
}
