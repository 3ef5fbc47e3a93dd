package reporting

import (
	"context"
	"errors"
	"time"

	"switchboard/internal/calls"
	"switchboard/internal/campaign"
	"switchboard/internal/voicemail"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// scanLimit caps how many rows one summary reads from a source.
const scanLimit = 10000

// Sources are the tenant-scoped reads reporting aggregates over. Every
// implementation filters on tenant id.
type (
	CallSource interface {
		List(ctx context.Context, tenantID string, since time.Time, limit int) ([]calls.CallEvent, error)
	}
	CampaignSource interface {
		List(ctx context.Context, tenantID string, limit int) ([]campaign.Campaign, error)
	}
	VoicemailSource interface {
		List(ctx context.Context, tenantID, extensionCode string, limit int) ([]voicemail.Voicemail, error)
	}
)

type Service struct {
	calls      CallSource
	campaigns  CampaignSource
	voicemails VoicemailSource
}

func NewService(c CallSource, camp CampaignSource, vm VoicemailSource) *Service {
	return &Service{calls: c, campaigns: camp, voicemails: vm}
}

func (s *Service) CallsSummary(ctx context.Context, tenantID string, r TimeRange) (CallsSummary, error) {
	if tenantID == "" || !r.valid() {
		return CallsSummary{}, ErrInvalidRequest
	}
	rows, err := s.calls.List(ctx, tenantID, r.From, scanLimit)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{TenantID: tenantID, Range: r}
	for _, c := range rows {
		if !r.contains(c.StartedAt) {
			continue
		}
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case calls.CallStatusBusy:
			out.BusyCalls++
		case calls.CallStatusCanceled:
			out.CanceledCalls++
		case calls.CallStatusInProgress, calls.CallStatusRinging:
			out.InProgressCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) CampaignSummary(ctx context.Context, tenantID string) (CampaignSummary, error) {
	if tenantID == "" {
		return CampaignSummary{}, ErrInvalidRequest
	}
	rows, err := s.campaigns.List(ctx, tenantID, scanLimit)
	if err != nil {
		return CampaignSummary{}, err
	}
	out := CampaignSummary{TenantID: tenantID, ByStatus: map[string]int{}}
	for _, c := range rows {
		out.Campaigns++
		out.ByStatus[string(c.Status)]++
		out.TotalRecipients += c.TotalRecipients
		out.Sent += c.SentCount
		out.Failed += c.FailedCount
	}
	if done := out.Sent + out.Failed; done > 0 {
		out.DeliveryRate = float64(out.Sent) / float64(done)
	}
	return out, nil
}

func (s *Service) VoicemailSummary(ctx context.Context, tenantID string) (VoicemailSummary, error) {
	if tenantID == "" {
		return VoicemailSummary{}, ErrInvalidRequest
	}
	rows, err := s.voicemails.List(ctx, tenantID, "", scanLimit)
	if err != nil {
		return VoicemailSummary{}, err
	}
	out := VoicemailSummary{TenantID: tenantID, ByExtension: map[string]int{}}
	for _, v := range rows {
		out.Total++
		if !v.Listened {
			out.Unlistened++
		}
		if v.Transcript != "" {
			out.Transcribed++
		}
		ext := v.ExtensionCode
		if ext == "" {
			ext = "general"
		}
		out.ByExtension[ext]++
	}
	return out, nil
}

func (s *Service) Analytics(ctx context.Context, tenantID string, r TimeRange) (Analytics, error) {
	var out Analytics
	var err error
	if out.Calls, err = s.CallsSummary(ctx, tenantID, r); err != nil {
		return Analytics{}, err
	}
	if out.Campaigns, err = s.CampaignSummary(ctx, tenantID); err != nil {
		return Analytics{}, err
	}
	if out.Voicemails, err = s.VoicemailSummary(ctx, tenantID); err != nil {
		return Analytics{}, err
	}
	return out, nil
}
