package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
	"github.com/nextlevelbuilder/openplatform/pkg/bridge/bridgetest"
)

func TestDingTalk_CapabilitiesRequireReady(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	ctx := context.Background()

	if _, err := a.AuthCode(ctx); !errors.Is(err, ErrNotReady) {
		t.Errorf("AuthCode: expected ErrNotReady, got %v", err)
	}
	if _, err := a.ScanCode(ctx, nil, false); !errors.Is(err, ErrNotReady) {
		t.Errorf("ScanCode: expected ErrNotReady, got %v", err)
	}
	if _, err := a.Share(ctx, ShareParams{URL: "https://x"}, false); !errors.Is(err, ErrNotReady) {
		t.Errorf("Share: expected ErrNotReady, got %v", err)
	}
	if n := len(dd.Calls()); n != 0 {
		t.Errorf("expected no bridge calls, got %d", n)
	}
	if a.State() != StateNotReady {
		t.Errorf("state = %s, want not_ready", a.State())
	}
}

func TestDingTalk_InitWithoutSignature(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))

	ch := startInit(a, &Options{})
	waitListeners(t, dd, "ready", 1)
	if a.State() != StatePending {
		t.Errorf("state = %s, want pending", a.State())
	}
	if len(dd.CallsTo("config")) != 0 {
		t.Error("config must not be called without a signature URL")
	}
	if dd.Listeners("error") != 1 {
		t.Errorf("error listeners = %d, want 1", dd.Listeners("error"))
	}

	dd.Fire("ready", nil)
	r := awaitInit(t, ch)
	if !r.ok || r.err != nil {
		t.Fatalf("Init = (%v, %v)", r.ok, r.err)
	}
	if !a.IsReady() {
		t.Error("expected ready")
	}
	if a.Options() == nil || a.Options().SignatureURL != "" {
		t.Errorf("options = %+v", a.Options())
	}
}

func TestDingTalk_InitBridgeError(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))

	payload := map[string]any{"errorCode": "3", "errorMessage": "jsapi not authorized"}
	ch := startInit(a, nil)
	waitListeners(t, dd, "error", 1)
	dd.Fire("error", payload)

	r := awaitInit(t, ch)
	var be *BridgeError
	if !errors.As(r.err, &be) {
		t.Fatalf("expected *BridgeError, got %v", r.err)
	}
	if !reflect.DeepEqual(be.Payload, payload) {
		t.Errorf("payload = %v, want %v", be.Payload, payload)
	}
	if r.ok || a.IsReady() || a.State() != StateFailed {
		t.Errorf("ok = %v state = %s", r.ok, a.State())
	}
}

func TestDingTalk_LaterErrorClearsReadiness(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	makeReady(t, a, dd)

	dd.Fire("error", map[string]any{"errorMessage": "session expired"})
	if a.IsReady() {
		t.Error("expected not ready after bridge error")
	}
	if _, err := a.AuthCode(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}

	// Init again re-arms the listeners and can recover.
	makeReady(t, a, dd)
	if !a.IsReady() {
		t.Error("expected ready after re-init")
	}
}

func TestDingTalk_InitWithSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"agentId":123456,"corpId":"ding123","timeStamp":1688550000,"nonceStr":"n1","signature":"s1"}`)
	}))
	defer srv.Close()

	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))

	ch := startInit(a, &Options{SignatureURL: srv.URL})
	waitListeners(t, dd, "ready", 1)

	cfg := dd.CallsTo("config")
	if len(cfg) != 1 {
		t.Fatalf("config calls = %d, want 1", len(cfg))
	}
	args := cfg[0].Args
	if args["agentId"] != "123456" || args["corpId"] != "ding123" || args["timeStamp"] != "1688550000" {
		t.Errorf("unexpected config args: %v", args)
	}
	if args["nonceStr"] != "n1" || args["signature"] != "s1" {
		t.Errorf("unexpected config args: %v", args)
	}
	want := []any{"runtime.info", "runtime.permission.requestAuthCode", "biz.util.scan"}
	if !reflect.DeepEqual(args["jsApiList"], want) {
		t.Errorf("jsApiList = %v, want %v", args["jsApiList"], want)
	}

	dd.Fire("ready", nil)
	if r := awaitInit(t, ch); !r.ok || r.err != nil {
		t.Fatalf("Init = (%v, %v)", r.ok, r.err)
	}
}

func TestDingTalk_InitSignatureFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))

	ok, err := a.Init(context.Background(), &Options{SignatureURL: srv.URL})
	var fe *SignatureFetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *SignatureFetchError, got %v", err)
	}
	if fe.Status != http.StatusInternalServerError {
		t.Errorf("status = %d", fe.Status)
	}
	if ok || a.IsReady() || a.State() != StateNotReady {
		t.Errorf("ok = %v state = %s", ok, a.State())
	}
	if len(dd.Calls()) != 0 {
		t.Errorf("expected no bridge calls, got %v", dd.Calls())
	}
}

func TestDingTalk_AuthCodeStampsBusinessID(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	makeReady(t, a, dd)

	native := map[string]any{"code": "c1"}
	dd.Handle("runtime.permission.requestAuthCode", bridgetest.Reply("onSuccess", native))

	res, err := a.AuthCode(context.Background())
	if err != nil {
		t.Fatalf("AuthCode: %v", err)
	}
	if res.Code != "c1" || res.BusinessAppID != "biz42" {
		t.Errorf("result = %+v", res)
	}
	if res.Raw["agAppId"] != "biz42" || res.Raw["code"] != "c1" {
		t.Errorf("raw = %v", res.Raw)
	}
	if _, stamped := native["agAppId"]; stamped {
		t.Error("native payload must not be mutated")
	}

	call := dd.CallsTo("runtime.permission.requestAuthCode")[0]
	if call.Args["corpId"] != "ding123" {
		t.Errorf("corpId = %v, want ding123", call.Args["corpId"])
	}
}

func TestDingTalk_AuthCodeFailurePassThrough(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	makeReady(t, a, dd)

	payload := map[string]any{"errorCode": "7", "errorMessage": "denied"}
	dd.Handle("runtime.permission.requestAuthCode", bridgetest.Reply("onFail", payload))

	_, err := a.AuthCode(context.Background())
	var be *BridgeError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BridgeError, got %v", err)
	}
	if !reflect.DeepEqual(be.Payload, payload) || be.Method != "runtime.permission.requestAuthCode" {
		t.Errorf("bridge error = %+v", be)
	}
	if errors.Is(err, ErrNotReady) {
		t.Error("bridge errors must be distinguishable from ErrNotReady")
	}
}

func TestDingTalk_ScanCodeDefaultsToAll(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	makeReady(t, a, dd)

	dd.Handle("biz.util.scan", bridgetest.Reply("onSuccess", map[string]any{"text": "6901234567892"}))

	res, err := a.ScanCode(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("ScanCode: %v", err)
	}
	scan, ok := res.(*DingTalkScanResult)
	if !ok {
		t.Fatalf("result type = %T", res)
	}
	if scan.Text != "6901234567892" || res.Content() != scan.Text {
		t.Errorf("scan = %+v", scan)
	}
	if got := dd.CallsTo("biz.util.scan")[0].Args["type"]; got != "all" {
		t.Errorf("type = %v, want all", got)
	}

	if _, err := a.ScanCode(context.Background(), []ScanType{ScanQRCode, ScanBarCode}, false); err != nil {
		t.Fatalf("ScanCode: %v", err)
	}
	if got := dd.CallsTo("biz.util.scan")[1].Args["type"]; got != "qrCode" {
		t.Errorf("type = %v, want qrCode", got)
	}
}

func TestDingTalk_ShareTwoStep(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	makeReady(t, a, dd)

	dd.Handle("biz.navigation.setRight", bridgetest.Reply("onSuccess", nil))
	dd.Handle("biz.util.share", bridgetest.Reply("onSuccess", map[string]any{"ok": true}))

	params := ShareParams{Type: ShareCurrentPage, URL: "https://x/y", Content: "c", Title: "t", Image: "i"}
	res, err := a.Share(context.Background(), params, false)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if !reflect.DeepEqual(res, map[string]any{"ok": true}) {
		t.Errorf("result = %v", res)
	}

	calls := dd.Calls()
	var order []string
	for _, c := range calls {
		if c.Fn == nil {
			order = append(order, c.Method)
		}
	}
	if !reflect.DeepEqual(order, []string{"biz.navigation.setRight", "biz.util.share"}) {
		t.Errorf("call order = %v", order)
	}

	nav := dd.CallsTo("biz.navigation.setRight")[0].Args
	if nav["show"] != true || nav["control"] != true || nav["showIcon"] != true {
		t.Errorf("setRight defaults = %v", nav)
	}
	share := dd.CallsTo("biz.util.share")[0].Args
	if share["type"] != 1 || share["url"] != "https://x/y" || share["content"] != "c" ||
		share["title"] != "t" || share["image"] != "i" {
		t.Errorf("share args = %v", share)
	}
}

func TestDingTalk_ShareNavControlAndFailure(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	makeReady(t, a, dd)

	dd.Handle("biz.navigation.setRight", bridgetest.Reply("onFail", "nav failed"))

	_, err := a.Share(context.Background(), ShareParams{
		NavControl: &NavControl{Show: false, Control: true, ShowIcon: false},
	}, false)
	var be *BridgeError
	if !errors.As(err, &be) || be.Payload != "nav failed" || be.Method != "biz.navigation.setRight" {
		t.Fatalf("expected setRight bridge error, got %v", err)
	}
	nav := dd.CallsTo("biz.navigation.setRight")[0].Args
	if nav["show"] != false || nav["showIcon"] != false {
		t.Errorf("setRight args = %v", nav)
	}
	if len(dd.CallsTo("biz.util.share")) != 0 {
		t.Error("share must not be issued when setRight fails")
	}
}

func TestDingTalk_ShareDebugBypassesReadiness(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))

	dd.Handle("biz.navigation.setRight", bridgetest.Reply("onSuccess", nil))
	dd.Handle("biz.util.share", bridgetest.Reply("onSuccess", "shared"))

	res, err := a.Share(context.Background(), ShareParams{URL: "https://x"}, true)
	if err != nil {
		t.Fatalf("Share(debug): %v", err)
	}
	if res != "shared" || a.IsReady() {
		t.Errorf("res = %v ready = %v", res, a.IsReady())
	}
}

func TestDingTalk_CallErrorSurfaces(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	makeReady(t, a, dd)

	want := &bridge.MethodError{Method: "biz.util.scan", Err: bridge.ErrNoSuchMethod}
	dd.Handle("biz.util.scan", func(bridge.Args) error { return want })

	_, err := a.ScanCode(context.Background(), nil, false)
	if !errors.Is(err, bridge.ErrNoSuchMethod) {
		t.Fatalf("expected ErrNoSuchMethod, got %v", err)
	}
}

func TestDingTalk_ContextCancelWhileWaiting(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))
	makeReady(t, a, dd)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.AuthCode(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !a.IsReady() {
		t.Error("a pending call must not change readiness")
	}
}

func TestDingTalk_ConcurrentInitSerialized(t *testing.T) {
	host, dd := dingTalkHost()
	a := NewDingTalk(host, WithLogger(quietLogger()))

	first := startInit(a, nil)
	waitListeners(t, dd, "ready", 1)
	second := startInit(a, nil)

	// The second Init must not register until the first settles.
	time.Sleep(20 * time.Millisecond)
	if n := dd.Listeners("ready"); n != 1 {
		t.Fatalf("ready listeners = %d, want 1 while first Init is pending", n)
	}

	fired := dd.Fire("ready", nil)
	if r := awaitInit(t, first); !r.ok || r.err != nil {
		t.Fatalf("first Init = (%v, %v)", r.ok, r.err)
	}

	waitListeners(t, dd, "ready", 2)
	dd.Fire("ready", nil)
	if r := awaitInit(t, second); !r.ok || r.err != nil {
		t.Fatalf("second Init = (%v, %v)", r.ok, r.err)
	}
	if fired != 1 {
		t.Errorf("first fire reached %d listeners, want 1", fired)
	}
}

func TestDingTalk_MissingBridge(t *testing.T) {
	a := NewDingTalk(bridgetest.NewHost(dingTalkURL), WithLogger(quietLogger()))

	if _, err := a.Init(context.Background(), nil); !errors.Is(err, ErrBridgeUnavailable) {
		t.Errorf("Init: expected ErrBridgeUnavailable, got %v", err)
	}
	if _, err := a.Share(context.Background(), ShareParams{}, true); !errors.Is(err, ErrBridgeUnavailable) {
		t.Errorf("Share(debug): expected ErrBridgeUnavailable, got %v", err)
	}
	if a.BusinessAppID() != "biz42" {
		t.Errorf("business id = %q, want biz42", a.BusinessAppID())
	}
	if a.State() != StateNotReady {
		t.Errorf("state = %s, want not_ready", a.State())
	}
}
