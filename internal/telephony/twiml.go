package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"switchboard/internal/routing"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs the call flow emits are modelled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name  `xml:"Gather"`
	Input         string    `xml:"input,attr"`
	NumDigits     int       `xml:"numDigits,attr,omitempty"`
	Timeout       int       `xml:"timeout,attr,omitempty"`
	SpeechTimeout string    `xml:"speechTimeout,attr,omitempty"`
	Action        string    `xml:"action,attr"`
	Method        string    `xml:"method,attr"`
	Say           *twimlSay `xml:"Say,omitempty"`
}

type twimlDial struct {
	XMLName  xml.Name `xml:"Dial"`
	Timeout  int      `xml:"timeout,attr,omitempty"`
	Action   string   `xml:"action,attr,omitempty"`
	Method   string   `xml:"method,attr,omitempty"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:"Number,omitempty"`
	Client   string   `xml:"Client,omitempty"`
}

type twimlRecord struct {
	XMLName                      xml.Name `xml:"Record"`
	MaxLength                    int      `xml:"maxLength,attr,omitempty"`
	Action                       string   `xml:"action,attr,omitempty"`
	Method                       string   `xml:"method,attr,omitempty"`
	PlayBeep                     bool     `xml:"playBeep,attr"`
	RecordingStatusCallback      string   `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackEvent string   `xml:"recordingStatusCallbackEvent,attr,omitempty"`
	Transcribe                   bool     `xml:"transcribe,attr,omitempty"`
	TranscribeCallback           string   `xml:"transcribeCallback,attr,omitempty"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlMessage struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if s == 0 {
		s = 1
	}
	return s
}

// RenderPlan maps a routing plan to TwiML.
func RenderPlan(p routing.Plan) (string, error) {
	var r twimlResponse
	for _, s := range p.Steps {
		switch v := s.(type) {
		case routing.Say:
			r.Verbs = append(r.Verbs, twimlSay{Text: v.Text})
		case routing.GatherDigits:
			g := twimlGather{Input: "dtmf", NumDigits: v.NumDigits, Timeout: seconds(v.Timeout), Action: v.Action, Method: "POST"}
			if v.Prompt != "" {
				g.Say = &twimlSay{Text: v.Prompt}
			}
			r.Verbs = append(r.Verbs, g)
		case routing.GatherSpeech:
			g := twimlGather{Input: "speech", Timeout: seconds(v.Timeout), SpeechTimeout: "auto", Action: v.Action, Method: "POST"}
			if v.Prompt != "" {
				g.Say = &twimlSay{Text: v.Prompt}
			}
			r.Verbs = append(r.Verbs, g)
		case routing.Dial:
			if v.Number == "" && v.Client == "" {
				return "", errors.New("telephony: dial requires a number or client")
			}
			r.Verbs = append(r.Verbs, twimlDial{
				Timeout:  seconds(v.Timeout),
				Action:   v.Action,
				Method:   "POST",
				CallerID: v.CallerID,
				Number:   v.Number,
				Client:   v.Client,
			})
		case routing.Record:
			rec := twimlRecord{
				MaxLength:               seconds(v.MaxLength),
				Action:                  v.Action,
				Method:                  "POST",
				PlayBeep:                true,
				RecordingStatusCallback: v.RecordingCallback,
			}
			if v.RecordingCallback != "" {
				rec.RecordingStatusCallbackEvent = "completed"
			}
			if v.TranscribeCallback != "" {
				rec.Transcribe = true
				rec.TranscribeCallback = v.TranscribeCallback
			}
			r.Verbs = append(r.Verbs, rec)
		case routing.Redirect:
			r.Verbs = append(r.Verbs, twimlRedirect{Method: "POST", URL: v.URL})
		case routing.Hangup:
			r.Verbs = append(r.Verbs, twimlHangup{})
		case routing.Reject:
			r.Verbs = append(r.Verbs, twimlReject{Reason: "rejected"})
		default:
			return "", fmt.Errorf("telephony: unsupported step %T", s)
		}
	}
	return encode(r)
}

// RenderMessage answers an inbound SMS. An empty body yields an empty
// response, which sends nothing.
func RenderMessage(body string) (string, error) {
	var r twimlResponse
	if body != "" {
		r.Verbs = append(r.Verbs, twimlMessage{Body: body})
	}
	return encode(r)
}

// RenderReject refuses a call without answering it.
func RenderReject() string {
	s, _ := encode(twimlResponse{Verbs: []any{twimlReject{Reason: "rejected"}}})
	return s
}

// RenderApology is the last-resort response when the call flow itself failed.
func RenderApology() string {
	s, _ := encode(twimlResponse{Verbs: []any{
		twimlSay{Text: "We're sorry, we are unable to take your call right now. Please try again later."},
		twimlHangup{},
	}})
	return s
}

func encode(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
