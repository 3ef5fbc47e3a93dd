package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"switchboard/internal/audit"
	"switchboard/internal/llm"
	"switchboard/internal/tenant"
	"switchboard/pkg/logger"
	"switchboard/pkg/metrics"
)

// Directory is the tenant-scoped lookup surface the call flow needs.
// *tenant.Registry implements it.
type Directory interface {
	OwnedNumber(ctx context.Context, tenantID, e164 string) (tenant.PhoneNumber, error)
	DirectDialExtension(ctx context.Context, n tenant.PhoneNumber) (tenant.Extension, bool, error)
	ActiveExtension(ctx context.Context, tenantID, code string) (tenant.Extension, bool, error)
	Directory(ctx context.Context, tenantID string) ([]tenant.Extension, error)
}

// CallLog writes CallEvent rows. *calls.Log implements it.
type CallLog interface {
	Started(ctx context.Context, tenantID, callSid, from, to string) error
	Finished(ctx context.Context, tenantID, callSid, providerStatus string, durationSeconds int) error
}

// DecisionAudit persists AI routing decisions. *audit.Service implements it.
type DecisionAudit interface {
	LogRoutingDecision(ctx context.Context, tenantID, callSid string, rec audit.RoutingDecisionRecord) error
}

type EngineConfig struct {
	RingTimeout    time.Duration
	InputTimeout   time.Duration
	LLMTimeout     time.Duration
	MaxMenuRetries int
	MaxAITurns     int
	Model          string
	VoicemailMax   time.Duration
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.RingTimeout <= 0 {
		c.RingTimeout = 20 * time.Second
	}
	if c.InputTimeout <= 0 {
		c.InputTimeout = 6 * time.Second
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 8 * time.Second
	}
	if c.MaxMenuRetries <= 0 {
		c.MaxMenuRetries = 3
	}
	if c.MaxAITurns <= 0 {
		c.MaxAITurns = 6
	}
	if c.VoicemailMax <= 0 {
		c.VoicemailMax = 2 * time.Minute
	}
	return c
}

// Engine runs the inbound call flow one webhook at a time. It holds no
// per-call state; everything it needs arrives on the callback.
type Engine struct {
	dir   Directory
	calls CallLog
	audit DecisionAudit
	ai    llm.Client
	urls  Callbacks
	cfg   EngineConfig
}

func NewEngine(dir Directory, calls CallLog, audit DecisionAudit, ai llm.Client, urls Callbacks, cfg EngineConfig) *Engine {
	return &Engine{dir: dir, calls: calls, audit: audit, ai: ai, urls: urls, cfg: cfg.withDefaults()}
}

// Call identifies the live call a webhook refers to. Tenant is already
// resolved and active.
type Call struct {
	Tenant  tenant.Tenant
	CallSid string
	From    string
	To      string
}

// Inbound handles the first webhook of a call.
func (e *Engine) Inbound(ctx context.Context, c Call) (Plan, error) {
	n, err := e.dir.OwnedNumber(ctx, c.Tenant.ID, c.To)
	if errors.Is(err, tenant.ErrNumberNotOwned) {
		logger.From(ctx).Warn("inbound call to number not owned by tenant", "tenant_id", c.Tenant.ID, "to", c.To, "call_sid", c.CallSid)
		return Plan{State: StateCompleted, Steps: []Step{Reject{}}}, nil
	}
	if err != nil {
		return Plan{}, err
	}

	if err := e.calls.Started(ctx, c.Tenant.ID, c.CallSid, c.From, c.To); err != nil {
		return Plan{}, fmt.Errorf("record call event: %w", err)
	}

	ext, direct, err := e.dir.DirectDialExtension(ctx, n)
	if err != nil {
		return e.lookupFailed(ctx, c, StateInbound, err), nil
	}
	if direct {
		transition(ctx, c.CallSid, StateInbound, EventDirectDial)
		return e.dialPlan(ctx, c, ext, nil), nil
	}

	transition(ctx, c.CallSid, StateInbound, EventCallArrived)
	return e.menuPlan(c.Tenant, 1, greeting(c.Tenant)), nil
}

// MenuInput handles digits (or their absence) from the main menu. attempt is
// the presentation count carried on the callback URL.
func (e *Engine) MenuInput(ctx context.Context, c Call, digits string, attempt int) (Plan, error) {
	digits = strings.TrimSpace(digits)
	if attempt < 1 {
		attempt = 1
	}

	var ev Event
	var ext tenant.Extension
	switch {
	case digits == "":
		ev = EventInputTimeout
	case digits == "0":
		ev = EventDigitOperator
	case digits == "9":
		ev = EventDigitRepeat
	case len(digits) == 3:
		found, ok, err := e.dir.ActiveExtension(ctx, c.Tenant.ID, digits)
		if err != nil {
			return e.lookupFailed(ctx, c, StateMainMenu, err), nil
		}
		if ok {
			ev, ext = EventDigitExtension, found
		} else {
			ev = EventDigitInvalid
		}
	default:
		ev = EventDigitInvalid
	}

	if (ev == EventInputTimeout || ev == EventDigitInvalid) && attempt >= e.cfg.MaxMenuRetries {
		ev = EventRetriesExhausted
	}

	switch transition(ctx, c.CallSid, StateMainMenu, ev) {
	case StateAIReceptionist:
		transition(ctx, c.CallSid, StateAIReceptionist, EventPromptIssued)
		return e.speechPlan(c.Tenant, 1, fmt.Sprintf("Hi, you've reached the virtual receptionist for %s. Who are you trying to reach?", c.Tenant.DisplayName)), nil
	case StateDialExtension:
		return e.dialPlan(ctx, c, ext, nil), nil
	case StateMainMenu:
		switch ev {
		case EventDigitRepeat:
			return e.menuPlan(c.Tenant, attempt, ""), nil
		case EventDigitInvalid:
			return e.menuPlan(c.Tenant, attempt+1, "Sorry, that is not a valid extension."), nil
		default:
			return e.menuPlan(c.Tenant, attempt+1, ""), nil
		}
	default:
		return e.voicemailPlan(c.Tenant, "", "", []Step{Say{Text: "We were unable to connect your call."}}), nil
	}
}

// Speech handles one AI receptionist turn.
func (e *Engine) Speech(ctx context.Context, c Call, transcript string, turn int) (Plan, error) {
	transcript = strings.TrimSpace(transcript)
	if turn < 1 {
		turn = 1
	}
	if turn > e.cfg.MaxAITurns {
		transition(ctx, c.CallSid, StateAwaitingSpeech, EventRetriesExhausted)
		return e.voicemailPlan(c.Tenant, "", "", nil), nil
	}
	if transcript == "" {
		if turn >= e.cfg.MaxAITurns {
			transition(ctx, c.CallSid, StateAwaitingSpeech, EventRetriesExhausted)
			return e.voicemailPlan(c.Tenant, "", "", nil), nil
		}
		transition(ctx, c.CallSid, StateAwaitingSpeech, EventInputTimeout)
		return e.speechPlan(c.Tenant, turn+1, "Are you still there? Tell me who you'd like to reach."), nil
	}

	directory, err := e.dir.Directory(ctx, c.Tenant.ID)
	if err != nil {
		return e.lookupFailed(ctx, c, StateAwaitingSpeech, err), nil
	}

	raw := e.complete(ctx, BuildRoutingPrompt(ContextFor(c.Tenant), directory, transcript))
	d, ok := Parse(ctx, raw, ParseContext{TenantID: c.Tenant.ID, CallSid: c.CallSid, Turn: turn})

	var ext tenant.Extension
	if d.Action.NeedsExtension() {
		found, active, err := e.dir.ActiveExtension(ctx, c.Tenant.ID, d.TargetExtension)
		if err != nil {
			return e.lookupFailed(ctx, c, StateAwaitingSpeech, err), nil
		}
		if !active {
			d = Decision{
				Action:        ActionInfo,
				SpokenMessage: fmt.Sprintf("I'm sorry, extension %s isn't available. Is there someone else I can connect you with?", d.TargetExtension),
				Rationale:     "target extension inactive",
			}
		} else {
			ext = found
		}
	}

	e.recordDecision(ctx, c, transcript, raw, d, !ok, turn)

	spoken := []Step{Say{Text: d.SpokenMessage}}
	switch d.Action {
	case ActionTransfer:
		transition(ctx, c.CallSid, StateAwaitingSpeech, EventDecisionTransfer)
		return e.dialPlan(ctx, c, ext, spoken), nil
	case ActionVoicemail:
		transition(ctx, c.CallSid, StateAwaitingSpeech, EventDecisionVoicemail)
		return e.voicemailPlan(c.Tenant, ext.Code, ext.DisplayName(), spoken), nil
	case ActionGoodbye:
		transition(ctx, c.CallSid, StateAwaitingSpeech, EventDecisionGoodbye)
		return Plan{State: StateGoodbye, Steps: append(spoken, Hangup{})}, nil
	default:
		if turn >= e.cfg.MaxAITurns {
			transition(ctx, c.CallSid, StateAwaitingSpeech, EventRetriesExhausted)
			return e.voicemailPlan(c.Tenant, "", "", nil), nil
		}
		transition(ctx, c.CallSid, StateAwaitingSpeech, EventDecisionInfo)
		return e.speechPlan(c.Tenant, turn+1, d.SpokenMessage), nil
	}
}

// DialOutcome handles the bridge result for an extension dial.
func (e *Engine) DialOutcome(ctx context.Context, c Call, extCode, dialStatus string) (Plan, error) {
	switch dialStatus {
	case "completed", "answered":
		transition(ctx, c.CallSid, StateAwaitingDialOutcome, EventDialAnswered)
		return Plan{State: StateCompleted, Steps: []Step{Hangup{}}}, nil
	}

	transition(ctx, c.CallSid, StateAwaitingDialOutcome, EventDialUnanswered)
	name := "extension " + extCode
	if extCode != "" {
		ext, ok, err := e.dir.ActiveExtension(ctx, c.Tenant.ID, extCode)
		if err != nil {
			logger.From(ctx).Warn("extension lookup failed after dial", "tenant_id", c.Tenant.ID, "ext", extCode, "err", err)
		} else if ok {
			name = ext.DisplayName()
		}
	}
	return e.voicemailPlan(c.Tenant, extCode, name, nil), nil
}

// VoicemailDone runs after the caller finishes recording.
func (e *Engine) VoicemailDone(ctx context.Context, c Call) Plan {
	transition(ctx, c.CallSid, StateVoicemail, EventRecordingDone)
	return Plan{State: StateCompleted, Steps: []Step{
		Say{Text: "Thank you. Your message has been recorded. Goodbye."},
		Hangup{},
	}}
}

// CallStatus applies the provider's terminal status to the CallEvent.
func (e *Engine) CallStatus(ctx context.Context, tenantID, callSid, status string, durationSeconds int) error {
	return e.calls.Finished(ctx, tenantID, callSid, status, durationSeconds)
}

func greeting(t tenant.Tenant) string {
	if s := strings.TrimSpace(t.GreetingScript); s != "" {
		return s
	}
	return fmt.Sprintf("Thank you for calling %s.", t.DisplayName)
}

const menuOptions = "If you know your party's extension, enter it now. Press 0 to speak with our receptionist. Press 9 to hear these options again."

func (e *Engine) menuPlan(t tenant.Tenant, attempt int, intro string) Plan {
	prompt := menuOptions
	if intro != "" {
		prompt = intro + " " + menuOptions
	}
	next := e.urls.Menu(t.ID, attempt)
	return Plan{State: StateMainMenu, Steps: []Step{
		GatherDigits{Prompt: prompt, NumDigits: 3, Timeout: e.cfg.InputTimeout, Action: next},
		// reached only when the gather collects nothing
		Redirect{URL: next},
	}}
}

func (e *Engine) speechPlan(t tenant.Tenant, turn int, prompt string) Plan {
	next := e.urls.AI(t.ID, turn)
	return Plan{State: StateAwaitingSpeech, Steps: []Step{
		GatherSpeech{Prompt: prompt, Timeout: e.cfg.InputTimeout, Action: next},
		Redirect{URL: next},
	}}
}

func (e *Engine) dialPlan(ctx context.Context, c Call, ext tenant.Extension, lead []Step) Plan {
	transition(ctx, c.CallSid, StateDialExtension, EventDialPlaced)
	steps := append([]Step{}, lead...)
	if len(lead) == 0 {
		steps = append(steps, Say{Text: fmt.Sprintf("Connecting you to %s.", ext.DisplayName())})
	}
	steps = append(steps, Dial{
		Number:   ext.ForwardTarget,
		Client:   ext.ClientIdentity(),
		CallerID: c.From,
		Timeout:  e.cfg.RingTimeout,
		Action:   e.urls.DialComplete(c.Tenant.ID, ext.Code),
	})
	return Plan{State: StateAwaitingDialOutcome, Steps: steps}
}

const lookupApology = "Sorry, we're having trouble connecting your call."

// lookupFailed sends an answered call to general voicemail when a directory
// read fails, so the caller can still leave a message.
func (e *Engine) lookupFailed(ctx context.Context, c Call, from State, err error) Plan {
	logger.From(ctx).Error("directory lookup failed mid-call", "tenant_id", c.Tenant.ID, "call_sid", c.CallSid, "state", from, "err", err)
	transition(ctx, c.CallSid, from, EventLookupFailed)
	return e.voicemailPlan(c.Tenant, "", "", []Step{Say{Text: lookupApology}})
}

func (e *Engine) voicemailPlan(t tenant.Tenant, extCode, name string, lead []Step) Plan {
	steps := append([]Step{}, lead...)
	if name != "" {
		steps = append(steps, Say{Text: fmt.Sprintf("%s is not available. Please leave a message after the tone.", name)})
	} else {
		steps = append(steps, Say{Text: "Please leave a message after the tone."})
	}
	steps = append(steps,
		Record{
			MaxLength:          e.cfg.VoicemailMax,
			Action:             e.urls.VoicemailDone(t.ID),
			RecordingCallback:  e.urls.Recording(t.ID, extCode),
			TranscribeCallback: e.urls.Transcription(t.ID, extCode),
		},
		Say{Text: "We did not receive a message. Goodbye."},
		Hangup{},
	)
	return Plan{State: StateVoicemail, Steps: steps}
}

// complete asks the model for a routing decision. Any failure yields ""
// which the parser turns into the safe default.
func (e *Engine) complete(ctx context.Context, msgs []llm.ChatMessage) string {
	if e.ai == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
	defer cancel()

	start := time.Now()
	resp, err := e.ai.Complete(ctx, &llm.CompletionRequest{
		Model:       e.cfg.Model,
		Messages:    msgs,
		MaxTokens:   200,
		Temperature: 0.2,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequestDuration.WithLabelValues("routing", status).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.From(ctx).Warn("routing inference failed", "provider", e.ai.Name(), "err", err)
		return ""
	}
	return resp.Content
}

func (e *Engine) recordDecision(ctx context.Context, c Call, transcript, raw string, d Decision, fallback bool, turn int) {
	if e.audit == nil {
		return
	}
	err := e.audit.LogRoutingDecision(ctx, c.Tenant.ID, c.CallSid, audit.RoutingDecisionRecord{
		Speech:   transcript,
		Raw:      raw,
		Action:   string(d.Action),
		Target:   d.TargetExtension,
		Spoken:   d.SpokenMessage,
		Reason:   d.Rationale,
		Fallback: fallback,
		Turn:     turn,
	})
	if err != nil {
		logger.From(ctx).Warn("routing decision audit failed", "tenant_id", c.Tenant.ID, "call_sid", c.CallSid, "err", err)
	}
}
