package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"switchboard/internal/compliance"
	"switchboard/internal/llm"
	"switchboard/internal/tenant"
	"switchboard/pkg/logger"
	"switchboard/pkg/metrics"
)

const (
	HandoffAck      = "Thanks, a member of our team will reply to you here shortly."
	FallbackReply   = "Sorry, I'm having trouble right now. Reply AGENT to reach a person."
	maxOutboundBody = 1600
)

// Sender delivers one outbound SMS and returns the provider message id.
type Sender interface {
	SendSMS(ctx context.Context, from, to, body string) (string, error)
}

type HandoffAudit interface {
	LogAgentHandoff(ctx context.Context, tenantID, counterpart, ours, trigger string) error
}

// NumberDirectory is the part of the tenant registry conversations need.
type NumberDirectory interface {
	OwnedNumber(ctx context.Context, tenantID, e164 string) (tenant.PhoneNumber, error)
	OldestActiveNumber(ctx context.Context, tenantID string) (tenant.PhoneNumber, error)
}

type Config struct {
	TTL          time.Duration
	HistoryLimit int
	LLMTimeout   time.Duration
	Model        string
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 7 * 24 * time.Hour
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 20
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 8 * time.Second
	}
	return c
}

type Service struct {
	store   Store
	ledger  compliance.Ledger
	sender  Sender
	audit   HandoffAudit
	ai      llm.Client
	numbers NumberDirectory
	cfg     Config
	now     func() time.Time
}

// NewService wires the SMS conversation flow. ai may be nil, in which case
// automated replies use the fallback text.
func NewService(store Store, ledger compliance.Ledger, sender Sender, audit HandoffAudit, ai llm.Client, numbers NumberDirectory, cfg Config) *Service {
	return &Service{
		store:   store,
		ledger:  ledger,
		sender:  sender,
		audit:   audit,
		ai:      ai,
		numbers: numbers,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// HandleInbound processes one inbound SMS for an already resolved tenant
// and returns the reply to send on the webhook response. The reply is safe
// to send even when err is non-nil: until the keyword, opt-out and mode
// checks have passed it is ReplyNone.
func (s *Service) HandleInbound(ctx context.Context, t tenant.Tenant, in InboundSMS) (Reply, error) {
	log := logger.From(ctx).With("tenant_id", t.ID, "message_sid", in.MessageSid)
	metrics.SMSMessages.WithLabelValues("inbound", "received").Inc()

	switch compliance.ClassifyKeyword(in.Body) {
	case compliance.KeywordStop:
		if err := s.ledger.OptOut(ctx, t.ID, in.From); err != nil {
			return Reply{Kind: ReplyNone}, fmt.Errorf("record opt-out: %w", err)
		}
		log.Info("sender opted out")
		return s.reply(compliance.StopConfirmation, ReplyCompliance), nil
	case compliance.KeywordStart:
		if err := s.ledger.OptIn(ctx, t.ID, in.From); err != nil {
			return Reply{Kind: ReplyNone}, fmt.Errorf("record opt-in: %w", err)
		}
		log.Info("sender opted back in")
		return s.reply(compliance.StartConfirmation, ReplyCompliance), nil
	}

	opted, err := s.ledger.IsOptedOut(ctx, t.ID, in.From)
	if err != nil {
		return Reply{Kind: ReplyNone}, fmt.Errorf("check opt-out: %w", err)
	}
	if opted {
		log.Info("ignoring message from opted-out sender")
		return Reply{Kind: ReplyNone}, nil
	}

	conv, err := s.load(ctx, t.ID, in.From, in.To)
	if err != nil {
		return Reply{Kind: ReplyNone}, err
	}
	now := s.now().UTC()
	conv.Append(RoleCustomer, in.Body, now, s.cfg.HistoryLimit)

	if conv.Mode == ModeHuman {
		if err := s.store.Put(ctx, conv, s.cfg.TTL); err != nil {
			return Reply{Kind: ReplyNone}, fmt.Errorf("save conversation: %w", err)
		}
		return Reply{Kind: ReplyNone}, nil
	}

	if trigger, ok := DetectHandoff(in.Body); ok {
		conv.Mode = ModeHuman
		conv.Append(RoleAssistant, HandoffAck, now, s.cfg.HistoryLimit)
		if err := s.store.Put(ctx, conv, s.cfg.TTL); err != nil {
			// The mode switch was not saved, so acknowledging it would be a lie.
			return Reply{Kind: ReplyNone}, fmt.Errorf("save conversation: %w", err)
		}
		metrics.AgentHandoffs.Inc()
		if s.audit != nil {
			if err := s.audit.LogAgentHandoff(ctx, t.ID, in.From, in.To, trigger); err != nil {
				log.Warn("failed to audit handoff", "err", err)
			}
		}
		log.Info("conversation handed to agent", "trigger", trigger)
		return s.reply(HandoffAck, ReplyHandoff), nil
	}

	body, kind := s.complete(ctx, t, conv.Messages)
	conv.Append(RoleAssistant, body, now, s.cfg.HistoryLimit)
	if err := s.store.Put(ctx, conv, s.cfg.TTL); err != nil {
		// Every guard has passed; only the history write is lost.
		return s.reply(body, kind), fmt.Errorf("save conversation: %w", err)
	}
	return s.reply(body, kind), nil
}

func (s *Service) reply(body, kind string) Reply {
	metrics.SMSMessages.WithLabelValues("outbound", kind).Inc()
	return Reply{Body: body, Kind: kind}
}

func (s *Service) complete(ctx context.Context, t tenant.Tenant, history []Message) (string, string) {
	if s.ai == nil {
		return FallbackReply, ReplyFallback
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.ai.Complete(ctx, &llm.CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    BuildSMSPrompt(t, history),
		MaxTokens:   160,
		Temperature: 0.4,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequestDuration.WithLabelValues("sms", status).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.From(ctx).Warn("sms inference failed", "provider", s.ai.Name(), "err", err)
		return FallbackReply, ReplyFallback
	}
	body := strings.TrimSpace(resp.Content)
	if body == "" {
		return FallbackReply, ReplyFallback
	}
	return body, ReplyAutomated
}

func (s *Service) load(ctx context.Context, tenantID, counterpart, ours string) (Conversation, error) {
	c, ok, err := s.store.Get(ctx, tenantID, counterpart, ours)
	if err != nil {
		return Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		c = Conversation{TenantID: tenantID, Counterpart: counterpart, OurNumber: ours, Mode: ModeAutomated}
	}
	return c, nil
}

// Get returns a stored conversation.
func (s *Service) Get(ctx context.Context, tenantID, counterpart, ours string) (Conversation, error) {
	c, ok, err := s.store.Get(ctx, tenantID, counterpart, ours)
	if err != nil {
		return Conversation{}, err
	}
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

// ReplyAsHuman sends an agent-authored message on a thread and pins the
// thread to human mode.
func (s *Service) ReplyAsHuman(ctx context.Context, tenantID, counterpart, ours, body string) (Conversation, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > maxOutboundBody {
		return Conversation{}, fmt.Errorf("%w: body must be 1-%d characters", ErrInvalidArgument, maxOutboundBody)
	}
	if _, err := s.numbers.OwnedNumber(ctx, tenantID, ours); err != nil {
		return Conversation{}, err
	}
	if err := s.checkOptOut(ctx, tenantID, counterpart); err != nil {
		return Conversation{}, err
	}
	conv, err := s.load(ctx, tenantID, counterpart, ours)
	if err != nil {
		return Conversation{}, err
	}
	if _, err := s.sender.SendSMS(ctx, ours, counterpart, body); err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	metrics.SMSMessages.WithLabelValues("outbound", "agent").Inc()
	conv.Mode = ModeHuman
	conv.Append(RoleAgent, body, s.now().UTC(), s.cfg.HistoryLimit)
	if err := s.store.Put(ctx, conv, s.cfg.TTL); err != nil {
		return Conversation{}, fmt.Errorf("save conversation: %w", err)
	}
	return conv, nil
}

// Release hands a conversation back to automated replies.
func (s *Service) Release(ctx context.Context, tenantID, counterpart, ours string) (Conversation, error) {
	conv, err := s.Get(ctx, tenantID, counterpart, ours)
	if err != nil {
		return Conversation{}, err
	}
	conv.Mode = ModeAutomated
	conv.LastActiveAt = s.now().UTC()
	if err := s.store.Put(ctx, conv, s.cfg.TTL); err != nil {
		return Conversation{}, fmt.Errorf("save conversation: %w", err)
	}
	return conv, nil
}

type SendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send delivers an ad-hoc message. From defaults to the tenant's oldest
// active number.
func (s *Service) Send(ctx context.Context, tenantID string, req SendRequest) (string, error) {
	req.To = strings.TrimSpace(req.To)
	req.Body = strings.TrimSpace(req.Body)
	if !tenant.ValidE164(req.To) {
		return "", fmt.Errorf("%w: to must be E.164", ErrInvalidArgument)
	}
	if req.Body == "" || len(req.Body) > maxOutboundBody {
		return "", fmt.Errorf("%w: body must be 1-%d characters", ErrInvalidArgument, maxOutboundBody)
	}
	from := strings.TrimSpace(req.From)
	if from == "" {
		n, err := s.numbers.OldestActiveNumber(ctx, tenantID)
		if err != nil {
			return "", err
		}
		from = n.E164
	} else if _, err := s.numbers.OwnedNumber(ctx, tenantID, from); err != nil {
		return "", err
	}
	if err := s.checkOptOut(ctx, tenantID, req.To); err != nil {
		return "", err
	}
	sid, err := s.sender.SendSMS(ctx, from, req.To, req.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	metrics.SMSMessages.WithLabelValues("outbound", "adhoc").Inc()
	return sid, nil
}

func (s *Service) checkOptOut(ctx context.Context, tenantID, phone string) error {
	opted, err := s.ledger.IsOptedOut(ctx, tenantID, phone)
	if err != nil {
		if errors.Is(err, compliance.ErrInvalidArgument) {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return err
	}
	if opted {
		return ErrOptedOut
	}
	return nil
}
