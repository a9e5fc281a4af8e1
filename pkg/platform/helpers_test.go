package platform

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge/bridgetest"
)

const (
	dingTalkURL = "https://host/subapp/h5?corpId=ding123&agAppId=biz42"
	feishuURL   = "https://host/subapp/#/home?appId=cli_a1&agAppId=biz7"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dingTalkHost() (*bridgetest.Host, *bridgetest.Object) {
	dd := bridgetest.NewObject()
	return bridgetest.NewHost(dingTalkURL).Set(GlobalDingTalk, dd), dd
}

func feishuHost() (*bridgetest.Host, *bridgetest.Object, *bridgetest.Object) {
	sdk, tt := bridgetest.NewObject(), bridgetest.NewObject()
	h := bridgetest.NewHost(feishuURL).Set(GlobalFeishuSDK, sdk).Set(GlobalFeishuAPI, tt)
	return h, sdk, tt
}

// waitListeners blocks until obj has at least n callbacks registered for method.
func waitListeners(t *testing.T, obj *bridgetest.Object, method string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for obj.Listeners(method) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %q listeners (have %d)", n, method, obj.Listeners(method))
		}
		time.Sleep(time.Millisecond)
	}
}

type initResult struct {
	ok  bool
	err error
}

// startInit runs Init in the background.
func startInit(a Adapter, opts *Options) <-chan initResult {
	ch := make(chan initResult, 1)
	go func() {
		ok, err := a.Init(context.Background(), opts)
		ch <- initResult{ok, err}
	}()
	return ch
}

func awaitInit(t *testing.T, ch <-chan initResult) initResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Init did not return")
		return initResult{}
	}
}

// makeReady drives a through a successful Init against lifecycle.
func makeReady(t *testing.T, a Adapter, lifecycle *bridgetest.Object) {
	t.Helper()
	before := lifecycle.Listeners("ready")
	ch := startInit(a, nil)
	waitListeners(t, lifecycle, "ready", before+1)
	lifecycle.Fire("ready", nil)
	if r := awaitInit(t, ch); !r.ok || r.err != nil {
		t.Fatalf("Init = (%v, %v), want (true, nil)", r.ok, r.err)
	}
}
