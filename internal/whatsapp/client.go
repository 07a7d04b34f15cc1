// Package whatsapp is the outbound messaging gateway, implemented over the
// Twilio WhatsApp content-template API.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ruktech/income-tracker/internal/log"
)

// Client sends templated WhatsApp messages through Twilio.
type Client struct {
	api         *twilio.RestClient
	from        string
	templateSID string
	logger      *log.Logger
}

// NewClient validates the credentials and builds the Twilio client. Missing
// settings are a construction error: the reminder job treats that as fatal
// since no send could succeed.
func NewClient(accountSID, authToken, from, templateSID string, logger *log.Logger) (*Client, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio credentials are required")
	}
	if from == "" {
		return nil, errors.New("twilio sender number is required")
	}
	if templateSID == "" {
		return nil, errors.New("twilio content template SID is required")
	}

	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Client{
		api:         api,
		from:        from,
		templateSID: templateSID,
		logger:      logger.WithComponent(log.ComponentWhatsApp),
	}, nil
}

// Send delivers one templated message. variables are the content template's
// positional parameters ("1", "2", ...).
func (c *Client) Send(ctx context.Context, toNumber string, variables map[string]string) error {
	if strings.TrimSpace(toNumber) == "" {
		return errors.New("recipient number is empty")
	}
	body, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("marshal template variables: %w", err)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(whatsappAddress(c.from))
	params.SetTo(whatsappAddress(toNumber))
	params.SetContentSid(c.templateSID)
	params.SetContentVariables(string(body))

	msg, err := c.api.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}

	sid := ""
	if msg.Sid != nil {
		sid = *msg.Sid
	}
	c.logger.InfoContext(ctx, "Reminder message accepted by gateway", "message_sid", sid)
	return nil
}

// whatsappAddress prefixes a number with the whatsapp: scheme Twilio expects.
func whatsappAddress(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
