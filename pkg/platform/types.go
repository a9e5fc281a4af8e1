package platform

import "encoding/json"

// Global names the host applications inject.
const (
	GlobalDingTalk  = "dd"
	GlobalFeishuSDK = "h5sdk"
	GlobalFeishuAPI = "tt"
)

// Options configures Init.
type Options struct {
	// SignatureURL, when set, is fetched for a JSAPI signature that is handed
	// to the bridge's config call before waiting for ready.
	SignatureURL string `json:"signatureUrl,omitempty"`
}

// AuthResult is a free-login authorization code stamped with the business id.
type AuthResult struct {
	Code          string         `json:"code"`
	BusinessAppID string         `json:"agAppId"`
	Raw           map[string]any `json:"-"` // native payload incl. agAppId
}

// ScanResult is the native scan payload. Concrete types differ per platform;
// switch on them when the fields matter.
type ScanResult interface {
	Kind() Kind
	// Content returns the scanned text regardless of platform.
	Content() string
}

// DingTalkScanResult is what biz.util.scan reports.
type DingTalkScanResult struct {
	Text string         `json:"text"`
	Raw  map[string]any `json:"-"`
}

func (r *DingTalkScanResult) Kind() Kind      { return KindDingTalk }
func (r *DingTalkScanResult) Content() string { return r.Text }

// FeishuScanResult is what tt.scanCode reports.
type FeishuScanResult struct {
	Result string         `json:"result"`
	ErrMsg string         `json:"errMsg"`
	Raw    map[string]any `json:"-"`
}

func (r *FeishuScanResult) Kind() Kind      { return KindFeishu }
func (r *FeishuScanResult) Content() string { return r.Result }

// ScanType selects which code formats the scanner accepts.
type ScanType string

const (
	ScanAll     ScanType = "all"
	ScanQRCode  ScanType = "qrCode"
	ScanBarCode ScanType = "barCode"
)

// ShareType is DingTalk's share panel mode.
type ShareType int

const (
	ShareAll         ShareType = iota // every share target
	ShareCurrentPage                  // DingTalk only
	NoShare                           // refresh button only
)

// NavControl configures DingTalk's navigation bar right button before sharing.
type NavControl struct {
	Show     bool `json:"show"`
	Control  bool `json:"control"`
	ShowIcon bool `json:"showIcon"`
}

// ShareParams is accepted by both adapters; each maps the fields it supports.
type ShareParams struct {
	Type       ShareType   `json:"type"`
	URL        string      `json:"url"`
	Content    string      `json:"content"`
	Title      string      `json:"title"`
	Image      string      `json:"image"`
	NavControl *NavControl `json:"controlMainParams,omitempty"`
}

// Scalar decodes a JSON string or number into its string form. Signing
// endpoints disagree on whether timestamps are quoted.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = Scalar(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Scalar(n.String())
	return nil
}

func (s Scalar) String() string { return string(s) }

// DingTalkSignature is the signing endpoint response for dd.config.
type DingTalkSignature struct {
	AgentID   Scalar `json:"agentId"`
	CorpID    string `json:"corpId"`
	TimeStamp Scalar `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Signature string `json:"signature"`
}

// FeishuSignature is the signing endpoint response for h5sdk.config.
type FeishuSignature struct {
	AppID     string `json:"appId"`
	Timestamp Scalar `json:"timestamp"`
	NonceStr  string `json:"nonceStr"`
	Signature string `json:"signature"`
}
