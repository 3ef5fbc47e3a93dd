package telephony

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func formRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/voice/inbound?tenant=t1", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseVoice(t *testing.T) {
	form, err := ParseVoice(formRequest("CallSid=CA123&From=%2B15551234567&To=%2B15557654321&CallStatus=ringing"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid")
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
}

func TestParseVoice_RequiresCallSid(t *testing.T) {
	_, err := ParseVoice(formRequest("From=%2B15551234567&To=%2B15557654321"))
	if !errors.Is(err, ErrMalformedWebhook) {
		t.Fatalf("expected malformed webhook, got %v", err)
	}
}

func TestParseMenuAndSpeech(t *testing.T) {
	m, err := ParseMenu(formRequest("CallSid=CA1&To=%2B18005550100&Digits=101"))
	if err != nil || m.Digits != "101" {
		t.Fatalf("unexpected menu form %+v err=%v", m, err)
	}
	s, err := ParseSpeech(formRequest("CallSid=CA1&To=%2B18005550100&SpeechResult=billing+please&Confidence=0.92"))
	if err != nil || s.SpeechResult != "billing please" || s.Confidence < 0.9 {
		t.Fatalf("unexpected speech form %+v err=%v", s, err)
	}
}

func TestParseDial_RequiresStatus(t *testing.T) {
	if _, err := ParseDial(formRequest("CallSid=CA1&To=%2B18005550100")); !errors.Is(err, ErrMalformedWebhook) {
		t.Fatalf("expected malformed webhook, got %v", err)
	}
}

func TestParseRecordingAndStatus(t *testing.T) {
	rec, err := ParseRecording(formRequest("CallSid=CA1&RecordingSid=RE1&RecordingUrl=https%3A%2F%2Fapi.twilio.com%2Frec%2FRE1&RecordingDuration=17"))
	if err != nil || rec.RecordingDuration != 17 {
		t.Fatalf("unexpected recording form %+v err=%v", rec, err)
	}
	st, err := ParseStatus(formRequest("CallSid=CA1&CallStatus=completed&CallDuration=abc"))
	if err != nil || st.CallDuration != 0 {
		t.Fatalf("bad durations should read as zero: %+v err=%v", st, err)
	}
}
