package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"parkingreserve/internal/db"
)

func sampleReservation(lang string) db.Reservation {
	return db.Reservation{
		ID:           "5f0c6a1e-0000-4000-8000-000000000001",
		SpaceID:      42,
		StartTime:    time.Date(2030, time.June, 1, 10, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2030, time.June, 1, 11, 0, 0, 0, time.UTC),
		LicensePlate: "ABC123",
		ContactEmail: "driver@example.com",
		ContactPhone: "+390612345678",
		Language:     lang,
	}
}

func TestMessageBuilder_Localized(t *testing.T) {
	b := NewMessageBuilder(time.UTC)

	subject, plain, html, err := b.Email(sampleReservation("es"), statusConfirmed)
	require.NoError(t, err)
	assert.Contains(t, subject, "confirmada")
	assert.Contains(t, plain, "ABC123")
	assert.Contains(t, plain, "Espacio: 42")
	assert.Contains(t, html, "01 Jun 2030 10:00 UTC")
	assert.Contains(t, html, `lang="es"`)

	subject, _, _, err = b.Email(sampleReservation("it"), statusCancelled)
	require.NoError(t, err)
	assert.Contains(t, subject, "annullata")

	subject, _, html, err = b.Email(sampleReservation(""), statusCancelled)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(subject, "Your parking reservation is cancelled"))
	assert.Contains(t, html, `lang="en"`)

	assert.Equal(t,
		"Parking: reservation 5f0c6a1e-0000-4000-8000-000000000001 is confirmed. Space 42, check-in 01/06 10:00.",
		b.SMS(sampleReservation("fr"), statusConfirmed))
	assert.Contains(t, b.SMS(sampleReservation("it"), statusConfirmed), "confermata")
}

type fakeEmailClient struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (c *fakeEmailClient) Send(email *mail.SGMailV3) (*rest.Response, error) {
	c.sent = append(c.sent, email)
	if c.err != nil {
		return nil, c.err
	}
	return &rest.Response{StatusCode: c.status, Body: "{}"}, nil
}

func TestSendGridNotifier(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := &fakeEmailClient{status: 202}
	n := &SendGridNotifier{client: client, fromEmail: "noreply@parking.test", fromName: "Parking", content: NewMessageBuilder(time.UTC), log: logger}

	require.NoError(t, n.Notify(context.Background(), sampleReservation("en"), statusConfirmed))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "noreply@parking.test", client.sent[0].From.Address)
	assert.Equal(t, "driver@example.com", client.sent[0].Personalizations[0].To[0].Address)

	client.status = 401
	assert.Error(t, n.Notify(context.Background(), sampleReservation("en"), statusConfirmed))

	client.err = errors.New("dial tcp: timeout")
	assert.Error(t, n.Notify(context.Background(), sampleReservation("en"), statusConfirmed))

	noEmail := sampleReservation("en")
	noEmail.ContactEmail = ""
	assert.ErrorIs(t, n.Notify(context.Background(), noEmail, statusConfirmed), errNoRecipient)
}

type fakeSMSClient struct {
	params []*openapi.CreateMessageParams
	err    error
}

func (c *fakeSMSClient) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	c.params = append(c.params, params)
	if c.err != nil {
		return nil, c.err
	}
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	client := &fakeSMSClient{}
	n := &TwilioNotifier{client: client, fromNumber: "+15550000000", content: NewMessageBuilder(time.UTC), log: logger}

	require.NoError(t, n.Notify(context.Background(), sampleReservation("es"), statusCancelled))
	require.Len(t, client.params, 1)
	assert.Equal(t, "+390612345678", *client.params[0].To)
	assert.Equal(t, "+15550000000", *client.params[0].From)
	assert.Contains(t, *client.params[0].Body, "cancelada")
	assert.Equal(t, "SM123", hook.LastEntry().Data["sid"])

	noPhone := sampleReservation("es")
	noPhone.ContactPhone = ""
	assert.ErrorIs(t, n.Notify(context.Background(), noPhone, statusCancelled), errNoRecipient)

	client.err = errors.New("invalid number")
	assert.Error(t, n.Notify(context.Background(), sampleReservation("es"), statusCancelled))
}

type flakyNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *flakyNotifier) Name() string { return "flaky" }

func (n *flakyNotifier) Notify(context.Context, db.Reservation, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return errors.New("provider down")
}

func TestNotificationDispatcher_LogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	flaky := &flakyNotifier{}
	d := NewNotificationDispatcher(logger, flaky)

	d.Dispatch(sampleReservation("en"), statusConfirmed)
	d.Wait()

	assert.Equal(t, 1, flaky.calls)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "notification failed", hook.LastEntry().Message)
	assert.Equal(t, "flaky", hook.LastEntry().Data["notifier"])
}
