package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/config"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/models"
)

const israelCountryCode = "+972"

// messageSender is the part of the Twilio client the notifier uses
type messageSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioService struct {
	api  messageSender
	from string // Twilio SMS number
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg *config.Config) (*TwilioService, error) {
	if !cfg.TwilioConfigured() {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	return &TwilioService{
		api:  client.Api,
		from: cfg.TwilioPhoneNumber,
	}, nil
}

// SendSMS sends a text message via Twilio
func (t *TwilioService) SendSMS(ctx context.Context, to string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(ToE164(to))
	params.SetBody(message)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}

	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Printf("✅ SMS sent! SID: %s", sid)
	return nil
}

// NotifyReceipt tells the customer a receipt was issued on their behalf
func (t *TwilioService) NotifyReceipt(ctx context.Context, phone string, contact *models.Contact, receipt *models.Receipt) error {
	return t.SendSMS(ctx, phone, ReceiptMessage(contact, receipt))
}

// ReceiptMessage is the SMS body for an issued receipt
func ReceiptMessage(contact *models.Contact, receipt *models.Receipt) string {
	msg := fmt.Sprintf("קבלה %s הופקה עבור %s בסכום של %d ש\"ח", receipt.ReceiptNo, contact.Name, receipt.Amount)
	if receipt.Description != "" {
		msg += ". תיאור: " + receipt.Description
	}
	return msg
}

// ToE164 converts a local Israeli number to international format. Numbers
// already carrying a country code are returned unchanged.
func ToE164(phone string) string {
	phone = models.NormalizePhone(phone)
	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "972"):
		return "+" + phone
	case strings.HasPrefix(phone, "0"):
		return israelCountryCode + phone[1:]
	}
	return phone
}
