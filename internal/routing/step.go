package routing

import "time"

// Plan is the provider-agnostic instruction list for one webhook response.
// The telephony adapter renders it (TwiML for Twilio).
type Plan struct {
	State State
	Steps []Step
}

// Step is one call-control verb.
type Step interface{ isStep() }

type Say struct {
	Text string
}

// GatherDigits collects up to NumDigits; the provider submits partial input
// when Timeout elapses.
type GatherDigits struct {
	Prompt    string
	NumDigits int
	Timeout   time.Duration
	Action    string
}

type GatherSpeech struct {
	Prompt  string
	Timeout time.Duration
	Action  string
}

// Dial rings Number and Client together; the first to answer wins.
type Dial struct {
	Number   string
	Client   string
	CallerID string
	Timeout  time.Duration
	Action   string
}

type Record struct {
	MaxLength          time.Duration
	Action             string
	RecordingCallback  string
	TranscribeCallback string
}

type Redirect struct {
	URL string
}

type Hangup struct{}

type Reject struct{}

func (Say) isStep()          {}
func (GatherDigits) isStep() {}
func (GatherSpeech) isStep() {}
func (Dial) isStep()         {}
func (Record) isStep()       {}
func (Redirect) isStep()     {}
func (Hangup) isStep()       {}
func (Reject) isStep()       {}
