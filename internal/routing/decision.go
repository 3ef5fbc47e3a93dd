package routing

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"switchboard/pkg/logger"
	"switchboard/pkg/metrics"
)

// Decision is the AI receptionist's choice for one caller utterance.
//
// It carries only what the call flow needs to act. It is persisted solely as
// an audit row next to the speech that produced it.
type Decision struct {
	Action          Action `json:"action"`
	TargetExtension string `json:"target_extension,omitempty"`
	SpokenMessage   string `json:"spoken_message"`
	Rationale       string `json:"rationale,omitempty"`
}

type Action string

const (
	ActionTransfer  Action = "transfer"
	ActionVoicemail Action = "voicemail"
	ActionInfo      Action = "info"
	ActionGoodbye   Action = "goodbye"
)

func (a Action) Valid() bool {
	switch a {
	case ActionTransfer, ActionVoicemail, ActionInfo, ActionGoodbye:
		return true
	default:
		return false
	}
}

// NeedsExtension reports whether the action must name a target extension.
func (a Action) NeedsExtension() bool {
	return a == ActionTransfer || a == ActionVoicemail
}

const fallbackMessage = "I'm sorry, I didn't quite catch that. I can connect you with a member of our team, or you can tell me who you're trying to reach."

// SafeDefault is returned whenever model output cannot be used.
func SafeDefault() Decision {
	return Decision{Action: ActionInfo, SpokenMessage: fallbackMessage, Rationale: "fallback"}
}

var defaultMessages = map[Action]string{
	ActionTransfer:  "Please hold while I connect you.",
	ActionVoicemail: "I'll take you to voicemail so you can leave a message.",
	ActionGoodbye:   "Thank you for calling. Goodbye.",
}

var extensionCode = regexp.MustCompile(`^[0-9]{1,6}$`)

// ParseDecision extracts the first balanced JSON object from raw model output
// and validates it. ok is false when the safe default was substituted.
func ParseDecision(raw string) (d Decision, ok bool) {
	obj, found := firstObject(raw)
	if !found {
		return SafeDefault(), false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return SafeDefault(), false
	}

	d.Action = Action(strings.ToLower(strings.TrimSpace(stringField(m, "action"))))
	if !d.Action.Valid() {
		return SafeDefault(), false
	}
	d.TargetExtension = stringField(m, "ext", "extension", "target", "target_extension")
	d.SpokenMessage = stringField(m, "message", "spoken_message", "say")
	d.Rationale = stringField(m, "reason", "rationale")

	if d.Action.NeedsExtension() {
		if !extensionCode.MatchString(d.TargetExtension) {
			return SafeDefault(), false
		}
	} else {
		d.TargetExtension = ""
	}
	if d.SpokenMessage == "" {
		msg, has := defaultMessages[d.Action]
		if !has {
			// an info turn with nothing to say is useless to the caller
			return SafeDefault(), false
		}
		d.SpokenMessage = msg
	}
	return d, true
}

// ParseContext identifies the call a decision belongs to.
type ParseContext struct {
	TenantID string
	CallSid  string
	Turn     int
}

// Parse is ParseDecision plus logging and metrics. Every outcome is logged
// with the raw model output.
func Parse(ctx context.Context, raw string, pc ParseContext) (Decision, bool) {
	d, ok := ParseDecision(raw)

	l := logger.From(ctx).With(
		"tenant_id", pc.TenantID,
		"call_sid", pc.CallSid,
		"turn", pc.Turn,
		"action", string(d.Action),
		"target_extension", d.TargetExtension,
		"raw", raw,
	)
	if ok {
		l.Info("routing decision parsed")
	} else {
		l.Warn("routing decision fell back to safe default")
	}
	metrics.RoutingDecisions.WithLabelValues(string(d.Action), strconv.FormatBool(!ok)).Inc()
	return d, ok
}

// firstObject returns the first balanced {...} in s, skipping braces that
// appear inside JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}
