package platform

import (
	"context"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
)

// dingTalkJSAPIs are the JSAPIs requested in dd.config.
var dingTalkJSAPIs = []any{"runtime.info", "runtime.permission.requestAuthCode", "biz.util.scan"}

// DingTalk adapts window.dd.
type DingTalk struct {
	*core
	dd bridge.Object // nil when the page is not inside DingTalk
}

var _ Adapter = (*DingTalk)(nil)

// NewDingTalk binds the dd global and the page's corpId/agAppId. Both are read
// once; later changes to the host are not observed.
func NewDingTalk(host bridge.Host, opts ...Option) *DingTalk {
	s := newSettings(opts)
	a := &DingTalk{core: newCore(KindDingTalk, "corpId", host, s)}
	if host != nil {
		if dd, ok := host.Global(GlobalDingTalk); ok {
			a.dd = dd
		}
	}
	return a
}

// Init implements Adapter. With a SignatureURL it calls dd.config first; some
// DingTalk JSAPIs refuse to run without it.
func (a *DingTalk) Init(ctx context.Context, opts *Options) (bool, error) {
	return a.handshake(ctx, opts, a.dd, func(ctx context.Context, signatureURL string) error {
		var sig DingTalkSignature
		if err := a.fetcher.Fetch(ctx, signatureURL, &sig); err != nil {
			return err
		}
		return a.dd.Call("config", bridge.Args{
			"agentId":   sig.AgentID.String(),
			"corpId":    sig.CorpID,
			"timeStamp": sig.TimeStamp.String(),
			"nonceStr":  sig.NonceStr,
			"signature": sig.Signature,
			"jsApiList": dingTalkJSAPIs,
		})
	})
}

// AuthCode implements Adapter via runtime.permission.requestAuthCode.
func (a *DingTalk) AuthCode(ctx context.Context) (_ *AuthResult, err error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	ctx, span := a.startSpan(ctx, "auth_code")
	defer func() { endSpan(span, err) }()

	v, err := a.invoke(ctx, a.dd, "runtime.permission.requestAuthCode",
		bridge.Args{"corpId": a.PlatformID()}, "onSuccess", "onFail")
	if err != nil {
		return nil, err
	}
	return authResult(v, a.BusinessAppID()), nil
}

// ScanCode implements Adapter via biz.util.scan. DingTalk takes one type, so
// only types[0] is used; the default is ScanAll. barCodeInput is not
// supported by this bridge and is ignored.
func (a *DingTalk) ScanCode(ctx context.Context, types []ScanType, barCodeInput bool) (_ ScanResult, err error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	ctx, span := a.startSpan(ctx, "scan_code")
	defer func() { endSpan(span, err) }()

	scanType := ScanAll
	if len(types) > 0 && types[0] != "" {
		scanType = types[0]
	}
	v, err := a.invoke(ctx, a.dd, "biz.util.scan",
		bridge.Args{"type": string(scanType)}, "onSuccess", "onFail")
	if err != nil {
		return nil, err
	}
	raw := asMap(v)
	return &DingTalkScanResult{Text: stringField(raw, "text"), Raw: raw}, nil
}

// Share implements Adapter. DingTalk shares from the navigation bar: setRight
// installs the button and, when control is on, its onSuccess fires on tap;
// only then is biz.util.share issued.
func (a *DingTalk) Share(ctx context.Context, params ShareParams, debug bool) (_ any, err error) {
	if !debug {
		if err := a.requireReady(); err != nil {
			return nil, err
		}
	}
	if a.dd == nil {
		return nil, unavailable(a.kind)
	}
	ctx, span := a.startSpan(ctx, "share")
	defer func() { endSpan(span, err) }()

	nav := NavControl{Show: true, Control: true, ShowIcon: true}
	if params.NavControl != nil {
		nav = *params.NavControl
	}

	out := newSettlement[any]()
	fail := func(method string) bridge.Callback {
		return func(v any) {
			out.reject(&BridgeError{Kind: a.kind, Method: method, Payload: v})
		}
	}

	err = a.dd.Call("biz.navigation.setRight", bridge.Args{
		"show":     nav.Show,
		"control":  nav.Control,
		"showIcon": nav.ShowIcon,
		"onSuccess": bridge.Callback(func(any) {
			err := a.dd.Call("biz.util.share", bridge.Args{
				"type":      int(params.Type),
				"url":       params.URL,
				"content":   params.Content,
				"title":     params.Title,
				"image":     params.Image,
				"onSuccess": bridge.Callback(func(v any) { out.resolve(v) }),
				"onFail":    fail("biz.util.share"),
			})
			if err != nil {
				out.reject(err)
			}
		}),
		"onFail": fail("biz.navigation.setRight"),
	})
	if err != nil {
		return nil, err
	}
	return out.wait(ctx)
}
