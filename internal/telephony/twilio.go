package telephony

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"switchboard/internal/tenant"
	"switchboard/pkg/metrics"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// twilioAPI is the subset of the v2010 REST API the platform calls.
type twilioAPI interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
	CreateIncomingPhoneNumber(params *api.CreateIncomingPhoneNumberParams) (*api.ApiV2010IncomingPhoneNumber, error)
	DeleteIncomingPhoneNumber(Sid string, params *api.DeleteIncomingPhoneNumberParams) error
	ListAvailablePhoneNumberTollFree(CountryCode string, params *api.ListAvailablePhoneNumberTollFreeParams) ([]api.ApiV2010AvailablePhoneNumberTollFree, error)
	ListAvailablePhoneNumberLocal(CountryCode string, params *api.ListAvailablePhoneNumberLocalParams) ([]api.ApiV2010AvailablePhoneNumberLocal, error)
	FetchAccount(Sid string) (*api.ApiV2010Account, error)
}

// TwilioProvider talks to the Twilio REST API.
type TwilioProvider struct {
	api        twilioAPI
	accountSID string
}

func NewTwilioProvider(accountSID, authToken string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return &TwilioProvider{api: client.Api, accountSID: accountSID}
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.api.FetchAccount(p.accountSID)
	return err
}

func (p *TwilioProvider) SendSMS(ctx context.Context, from, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &api.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := p.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio send sms: %w", err)
	}
	metrics.SMSMessages.WithLabelValues("outbound", "api").Inc()
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// PurchaseNumber picks the first available number of the requested kind and
// buys it with the tenant's webhook URLs already attached.
func (p *TwilioProvider) PurchaseNumber(ctx context.Context, req tenant.PurchaseRequest) (tenant.PurchasedNumber, error) {
	if err := ctx.Err(); err != nil {
		return tenant.PurchasedNumber{}, err
	}
	candidate, err := p.findAvailable(req)
	if err != nil {
		return tenant.PurchasedNumber{}, err
	}

	params := &api.CreateIncomingPhoneNumberParams{}
	params.SetPhoneNumber(candidate)
	params.SetFriendlyName(req.FriendlyName)
	params.SetVoiceUrl(req.VoiceURL)
	params.SetVoiceMethod("POST")
	params.SetSmsUrl(req.SMSURL)
	params.SetSmsMethod("POST")
	params.SetStatusCallback(req.StatusURL)
	params.SetStatusCallbackMethod("POST")

	resp, err := p.api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return tenant.PurchasedNumber{}, fmt.Errorf("twilio purchase number: %w", err)
	}
	out := tenant.PurchasedNumber{E164: candidate}
	if resp.PhoneNumber != nil {
		out.E164 = *resp.PhoneNumber
	}
	if resp.Sid != nil {
		out.ProviderRef = *resp.Sid
	}
	return out, nil
}

func (p *TwilioProvider) findAvailable(req tenant.PurchaseRequest) (string, error) {
	var areaCode int
	if req.AreaCode != "" {
		n, err := strconv.Atoi(req.AreaCode)
		if err != nil {
			return "", fmt.Errorf("%w: area code must be numeric", tenant.ErrInvalidArgument)
		}
		areaCode = n
	}

	switch req.Kind {
	case tenant.NumberKindTollFree:
		params := &api.ListAvailablePhoneNumberTollFreeParams{}
		params.SetLimit(1)
		if areaCode > 0 {
			params.SetAreaCode(areaCode)
		}
		list, err := p.api.ListAvailablePhoneNumberTollFree(req.CountryISO2, params)
		if err != nil {
			return "", fmt.Errorf("twilio list toll-free: %w", err)
		}
		for _, n := range list {
			if n.PhoneNumber != nil {
				return *n.PhoneNumber, nil
			}
		}
	case tenant.NumberKindLocal:
		params := &api.ListAvailablePhoneNumberLocalParams{}
		params.SetLimit(1)
		params.SetAreaCode(areaCode)
		params.SetSmsEnabled(true)
		params.SetVoiceEnabled(true)
		list, err := p.api.ListAvailablePhoneNumberLocal(req.CountryISO2, params)
		if err != nil {
			return "", fmt.Errorf("twilio list local: %w", err)
		}
		for _, n := range list {
			if n.PhoneNumber != nil {
				return *n.PhoneNumber, nil
			}
		}
	default:
		return "", fmt.Errorf("%w: unknown number kind %q", tenant.ErrInvalidArgument, req.Kind)
	}
	return "", errors.New("twilio: no numbers available for the requested area")
}

func (p *TwilioProvider) ReleaseNumber(ctx context.Context, providerRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if providerRef == "" {
		return errors.New("twilio: provider ref required to release a number")
	}
	if err := p.api.DeleteIncomingPhoneNumber(providerRef, &api.DeleteIncomingPhoneNumberParams{}); err != nil {
		return fmt.Errorf("twilio release number: %w", err)
	}
	return nil
}
