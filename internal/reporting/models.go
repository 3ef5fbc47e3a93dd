package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

func (r TimeRange) contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

type CallsSummary struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`

	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	CanceledCalls   int `json:"canceled_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

type CampaignSummary struct {
	TenantID string `json:"tenant_id"`

	Campaigns       int            `json:"campaigns"`
	ByStatus        map[string]int `json:"by_status"`
	TotalRecipients int            `json:"total_recipients"`
	Sent            int            `json:"sent"`
	Failed          int            `json:"failed"`
	DeliveryRate    float64        `json:"delivery_rate"`
}

type VoicemailSummary struct {
	TenantID string `json:"tenant_id"`

	Total       int            `json:"total"`
	Unlistened  int            `json:"unlistened"`
	Transcribed int            `json:"transcribed"`
	ByExtension map[string]int `json:"by_extension"`
}

// Analytics is the tenant analytics endpoint payload.
type Analytics struct {
	Calls      CallsSummary     `json:"calls"`
	Campaigns  CampaignSummary  `json:"campaigns"`
	Voicemails VoicemailSummary `json:"voicemails"`
}
