package platform

import (
	"context"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
)

// defaultFeishuScanTypes is used when ScanCode gets no types.
var defaultFeishuScanTypes = []ScanType{ScanBarCode, ScanQRCode}

// Feishu adapts window.h5sdk (lifecycle) and window.tt (JSAPIs). Feishu
// JSAPIs must be authorized through h5sdk.config before use.
type Feishu struct {
	*core
	h5sdk bridge.Object
	tt    bridge.Object
}

var _ Adapter = (*Feishu)(nil)

// NewFeishu binds the h5sdk and tt globals and the page's appId/agAppId. The
// bridge counts as available only when both globals exist.
func NewFeishu(host bridge.Host, opts ...Option) *Feishu {
	s := newSettings(opts)
	a := &Feishu{core: newCore(KindFeishu, "appId", host, s)}
	if host == nil {
		return a
	}
	h5sdk, okSDK := host.Global(GlobalFeishuSDK)
	tt, okAPI := host.Global(GlobalFeishuAPI)
	if okSDK && okAPI {
		a.h5sdk, a.tt = h5sdk, tt
	}
	return a
}

// Init implements Adapter. The signature response also rebinds the appId
// used by AuthCode.
func (a *Feishu) Init(ctx context.Context, opts *Options) (bool, error) {
	return a.handshake(ctx, opts, a.h5sdk, func(ctx context.Context, signatureURL string) error {
		var sig FeishuSignature
		if err := a.fetcher.Fetch(ctx, signatureURL, &sig); err != nil {
			return err
		}
		a.setPlatformID(sig.AppID)
		return a.h5sdk.Call("config", bridge.Args{
			"appId":     sig.AppID,
			"timestamp": sig.Timestamp.String(),
			"nonceStr":  sig.NonceStr,
			"signature": sig.Signature,
			"jsApiList": []any{},
		})
	})
}

// AuthCode implements Adapter via tt.requestAuthCode.
func (a *Feishu) AuthCode(ctx context.Context) (_ *AuthResult, err error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	ctx, span := a.startSpan(ctx, "auth_code")
	defer func() { endSpan(span, err) }()

	v, err := a.invoke(ctx, a.tt, "requestAuthCode",
		bridge.Args{"appId": a.PlatformID()}, "success", "fail")
	if err != nil {
		return nil, err
	}
	return authResult(v, a.BusinessAppID()), nil
}

// ScanCode implements Adapter via tt.scanCode. The default accepts bar and QR
// codes.
func (a *Feishu) ScanCode(ctx context.Context, types []ScanType, barCodeInput bool) (_ ScanResult, err error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	ctx, span := a.startSpan(ctx, "scan_code")
	defer func() { endSpan(span, err) }()

	if len(types) == 0 {
		types = defaultFeishuScanTypes
	}
	scanTypes := make([]any, 0, len(types))
	for _, t := range types {
		scanTypes = append(scanTypes, string(t))
	}

	v, err := a.invoke(ctx, a.tt, "scanCode", bridge.Args{
		"scanType":     scanTypes,
		"barCodeInput": barCodeInput,
	}, "success", "fail")
	if err != nil {
		return nil, err
	}
	raw := asMap(v)
	return &FeishuScanResult{
		Result: stringField(raw, "result"),
		ErrMsg: stringField(raw, "errMsg"),
		Raw:    raw,
	}, nil
}

// Share implements Adapter via tt.share to the system share sheet. Type,
// Content and NavControl have no Feishu equivalent.
func (a *Feishu) Share(ctx context.Context, params ShareParams, debug bool) (_ any, err error) {
	if !debug {
		if err := a.requireReady(); err != nil {
			return nil, err
		}
	}
	if a.tt == nil {
		return nil, unavailable(a.kind)
	}
	ctx, span := a.startSpan(ctx, "share")
	defer func() { endSpan(span, err) }()

	return a.invoke(ctx, a.tt, "share", bridge.Args{
		"channelType": []any{"system"},
		"contentType": "url",
		"title":       params.Title,
		"url":         params.URL,
		"image":       params.Image,
	}, "success", "fail")
}
