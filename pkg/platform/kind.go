package platform

import (
	"fmt"
	"strings"
)

// Kind identifies the host application a page runs inside.
type Kind int

const (
	// KindDingTalk is the corporate chat host (window.dd).
	KindDingTalk Kind = iota
	// KindFeishu is the work collaboration host (window.h5sdk + window.tt).
	KindFeishu
)

// Kinds lists every supported kind in detection order.
var Kinds = []Kind{KindDingTalk, KindFeishu}

func (k Kind) String() string {
	switch k {
	case KindDingTalk:
		return "dingtalk"
	case KindFeishu:
		return "feishu"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a config or flag value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dingtalk", "dingding", "dd", "0":
		return KindDingTalk, nil
	case "feishu", "lark", "1":
		return KindFeishu, nil
	default:
		return 0, fmt.Errorf("unknown platform kind %q", s)
	}
}

// State is an adapter's readiness.
type State int

const (
	StateNotReady State = iota // Init never called
	StatePending               // Init waiting on ready/error
	StateReady                 // bridge signalled ready
	StateFailed                // bridge signalled error
)

func (s State) String() string {
	switch s {
	case StateNotReady:
		return "not_ready"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
