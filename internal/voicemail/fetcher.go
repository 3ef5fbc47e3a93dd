package voicemail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads recording media from the provider.
type Fetcher interface {
	Fetch(ctx context.Context, recordingURL string) ([]byte, error)
}

// TwilioFetcher downloads recordings with account basic auth. Twilio serves
// the media at the RecordingUrl plus a format extension.
type TwilioFetcher struct {
	client *resty.Client
}

func NewTwilioFetcher(accountSID, authToken string) *TwilioFetcher {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetBasicAuth(accountSID, authToken)
	return &TwilioFetcher{client: client}
}

func (f *TwilioFetcher) Fetch(ctx context.Context, recordingURL string) ([]byte, error) {
	u := recordingURL
	if !strings.HasSuffix(u, ".mp3") && !strings.HasSuffix(u, ".wav") {
		u += ".mp3"
	}
	resp, err := f.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, fmt.Errorf("fetch recording: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch recording: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
