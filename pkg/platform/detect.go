package platform

import "github.com/nextlevelbuilder/openplatform/pkg/bridge"

// Detection is the outcome of probing a host.
type Detection struct {
	Kind Kind
	OK   bool
}

// Detector decides which platform a host belongs to.
type Detector func(h bridge.Host) Detection

// DefaultDetector probes the injected globals: dd first, then h5sdk. A page
// embedding both is treated as DingTalk.
func DefaultDetector(h bridge.Host) Detection {
	if h == nil {
		return Detection{}
	}
	if _, ok := h.Global(GlobalDingTalk); ok {
		return Detection{Kind: KindDingTalk, OK: true}
	}
	if _, ok := h.Global(GlobalFeishuSDK); ok {
		return Detection{Kind: KindFeishu, OK: true}
	}
	return Detection{}
}
