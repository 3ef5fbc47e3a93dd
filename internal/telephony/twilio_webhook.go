package telephony

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Typed Twilio webhook payloads, one per event kind. Each Parse* function
// validates the fields its handler depends on.
// Ref: https://www.twilio.com/docs/usage/webhooks/voice-webhooks

var ErrMalformedWebhook = errors.New("telephony: malformed webhook payload")

// VoiceForm is the common part of every voice call-control webhook.
type VoiceForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string
}

type MenuForm struct {
	VoiceForm
	Digits string
}

type SpeechForm struct {
	VoiceForm
	SpeechResult string
	Confidence   float64
}

type DialForm struct {
	VoiceForm
	DialCallStatus string
}

type StatusForm struct {
	CallSid      string
	CallStatus   string
	CallDuration int
}

type RecordingForm struct {
	CallSid           string
	RecordingSid      string
	RecordingURL      string
	RecordingStatus   string
	RecordingDuration int
}

type TranscriptionForm struct {
	CallSid             string
	RecordingSid        string
	TranscriptionText   string
	TranscriptionStatus string
}

type SMSForm struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
}

func parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return errors.Join(ErrMalformedWebhook, err)
	}
	return nil
}

func field(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func intField(r *http.Request, key string) int {
	n, err := strconv.Atoi(field(r, key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func ParseVoice(r *http.Request) (VoiceForm, error) {
	if err := parseForm(r); err != nil {
		return VoiceForm{}, err
	}
	f := VoiceForm{
		CallSid:    field(r, "CallSid"),
		AccountSid: field(r, "AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Direction:  field(r, "Direction"),
		CallStatus: field(r, "CallStatus"),
	}
	if f.CallSid == "" || f.To == "" {
		return VoiceForm{}, ErrMalformedWebhook
	}
	return f, nil
}

func ParseMenu(r *http.Request) (MenuForm, error) {
	v, err := ParseVoice(r)
	if err != nil {
		return MenuForm{}, err
	}
	return MenuForm{VoiceForm: v, Digits: field(r, "Digits")}, nil
}

func ParseSpeech(r *http.Request) (SpeechForm, error) {
	v, err := ParseVoice(r)
	if err != nil {
		return SpeechForm{}, err
	}
	conf, _ := strconv.ParseFloat(field(r, "Confidence"), 64)
	return SpeechForm{VoiceForm: v, SpeechResult: field(r, "SpeechResult"), Confidence: conf}, nil
}

func ParseDial(r *http.Request) (DialForm, error) {
	v, err := ParseVoice(r)
	if err != nil {
		return DialForm{}, err
	}
	f := DialForm{VoiceForm: v, DialCallStatus: field(r, "DialCallStatus")}
	if f.DialCallStatus == "" {
		return DialForm{}, ErrMalformedWebhook
	}
	return f, nil
}

func ParseStatus(r *http.Request) (StatusForm, error) {
	if err := parseForm(r); err != nil {
		return StatusForm{}, err
	}
	f := StatusForm{
		CallSid:      field(r, "CallSid"),
		CallStatus:   field(r, "CallStatus"),
		CallDuration: intField(r, "CallDuration"),
	}
	if f.CallSid == "" || f.CallStatus == "" {
		return StatusForm{}, ErrMalformedWebhook
	}
	return f, nil
}

func ParseRecording(r *http.Request) (RecordingForm, error) {
	if err := parseForm(r); err != nil {
		return RecordingForm{}, err
	}
	f := RecordingForm{
		CallSid:           field(r, "CallSid"),
		RecordingSid:      field(r, "RecordingSid"),
		RecordingURL:      field(r, "RecordingUrl"),
		RecordingStatus:   field(r, "RecordingStatus"),
		RecordingDuration: intField(r, "RecordingDuration"),
	}
	if f.RecordingSid == "" || f.RecordingURL == "" {
		return RecordingForm{}, ErrMalformedWebhook
	}
	return f, nil
}

func ParseTranscription(r *http.Request) (TranscriptionForm, error) {
	if err := parseForm(r); err != nil {
		return TranscriptionForm{}, err
	}
	f := TranscriptionForm{
		CallSid:             field(r, "CallSid"),
		RecordingSid:        field(r, "RecordingSid"),
		TranscriptionText:   field(r, "TranscriptionText"),
		TranscriptionStatus: field(r, "TranscriptionStatus"),
	}
	if f.RecordingSid == "" {
		return TranscriptionForm{}, ErrMalformedWebhook
	}
	return f, nil
}

func ParseSMS(r *http.Request) (SMSForm, error) {
	if err := parseForm(r); err != nil {
		return SMSForm{}, err
	}
	f := SMSForm{
		MessageSid: field(r, "MessageSid"),
		AccountSid: field(r, "AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
	}
	if f.From == "" || f.To == "" {
		return SMSForm{}, ErrMalformedWebhook
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}
