package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPlatform is returned when no host bridge is present and no
	// kind was requested explicitly.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrNotReady is returned by capability calls made before the bridge
	// signalled ready. No bridge function is invoked in that case.
	ErrNotReady = errors.New("platform is not ready")

	// ErrBridgeUnavailable is returned when the adapter's host globals were
	// missing at construction time.
	ErrBridgeUnavailable = errors.New("platform bridge not available")
)

// BridgeError carries a failure the native bridge reported through its
// error/fail callback. Payload is exactly what the bridge passed.
type BridgeError struct {
	Kind    Kind
	Method  string
	Payload any
}

func (e *BridgeError) Error() string {
	if msg := payloadMessage(e.Payload); msg != "" {
		return fmt.Sprintf("%s %s failed: %s", e.Kind, e.Method, msg)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Method, e.Payload)
}

// payloadMessage pulls a human readable message out of the common error
// shapes: DingTalk {errorCode, errorMessage}, Feishu {errno, errString} or
// {errMsg}.
func payloadMessage(p any) string {
	m, ok := p.(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range []string{"errorMessage", "errString", "errMsg", "message"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// SignatureFetchError wraps a failed request to the signing endpoint.
type SignatureFetchError struct {
	URL    string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *SignatureFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch signature %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch signature %s: %v", e.URL, e.Err)
}

func (e *SignatureFetchError) Unwrap() error { return e.Err }

// notReady wraps ErrNotReady with the platform name.
func notReady(k Kind) error {
	return fmt.Errorf("%s: %w", k, ErrNotReady)
}

func unavailable(k Kind) error {
	return fmt.Errorf("%s: %w", k, ErrBridgeUnavailable)
}
