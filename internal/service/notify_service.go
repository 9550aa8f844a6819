package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"parkingreserve/internal/db"
)

// Notifier delivers a reservation status change to the driver through one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, res db.Reservation, status string) error
}

var errNoRecipient = errors.New("no recipient")

type emailClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridNotifier struct {
	client    emailClient
	fromEmail string
	fromName  string
	content   *MessageBuilder
	log       logrus.FieldLogger
}

func NewSendGridNotifier(apiKey, fromEmail, fromName string, content *MessageBuilder, log logrus.FieldLogger) *SendGridNotifier {
	if fromName == "" {
		fromName = "Parking Reservations"
	}
	return &SendGridNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		content:   content,
		log:       log.WithField("notifier", "sendgrid"),
	}
}

func (n *SendGridNotifier) Name() string { return "sendgrid" }

func (n *SendGridNotifier) Notify(_ context.Context, res db.Reservation, status string) error {
	if res.ContactEmail == "" {
		return errNoRecipient
	}
	subject, plainText, htmlBody, err := n.content.Email(res, status)
	if err != nil {
		return err
	}

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(res.LicensePlate, res.ContactEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlBody)

	response, err := n.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", res.ContactEmail, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	n.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"status_code":    response.StatusCode,
	}).Info("reservation email sent")
	return nil
}

type smsClient interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type TwilioNotifier struct {
	client     smsClient
	fromNumber string
	content    *MessageBuilder
	log        logrus.FieldLogger
}

func NewTwilioNotifier(accountSid, authToken, fromNumber string, content *MessageBuilder, log logrus.FieldLogger) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSid,
		Password:   authToken,
		AccountSid: accountSid,
	})
	return &TwilioNotifier{
		client:     client.Api,
		fromNumber: fromNumber,
		content:    content,
		log:        log.WithField("notifier", "twilio"),
	}
}

func (n *TwilioNotifier) Name() string { return "twilio" }

func (n *TwilioNotifier) Notify(_ context.Context, res db.Reservation, status string) error {
	if res.ContactPhone == "" {
		return errNoRecipient
	}
	if !strings.HasPrefix(res.ContactPhone, "+") {
		n.log.WithField("phone", res.ContactPhone).Warn("destination number is not E.164, delivery may fail")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(res.ContactPhone)
	params.SetFrom(n.fromNumber)
	params.SetBody(n.content.SMS(res, status))

	resp, err := n.client.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send to %s: %w", res.ContactPhone, err)
	}
	entry := n.log.WithField("reservation_id", res.ID)
	if resp != nil && resp.Sid != nil {
		entry = entry.WithField("sid", *resp.Sid)
	}
	entry.Info("reservation sms sent")
	return nil
}
