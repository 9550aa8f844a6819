package service

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"parkingreserve/internal/db"
	"parkingreserve/internal/entities"
)

const (
	statusConfirmed = "confirmed"
	statusCancelled = "cancelled"
)

//go:embed templates/reservation_email.html
var reservationEmailTemplate string

// MessageBuilder renders localized (en, es, it) email and SMS bodies for a reservation.
type MessageBuilder struct {
	loc  *time.Location
	tmpl *template.Template
	now  func() time.Time
}

func NewMessageBuilder(loc *time.Location) *MessageBuilder {
	if loc == nil {
		loc = time.UTC
	}
	return &MessageBuilder{
		loc:  loc,
		tmpl: template.Must(template.New("reservation_email").Parse(reservationEmailTemplate)),
		now:  time.Now,
	}
}

func (b *MessageBuilder) emailData(res db.Reservation, status string) entities.ReservationEmailData {
	return entities.ReservationEmailData{
		LicensePlate:       res.LicensePlate,
		ReservationID:      res.ID,
		SpaceID:            res.SpaceID,
		StartTimeFormatted: res.StartTime.In(b.loc).Format("02 Jan 2006 15:04 MST"),
		EndTimeFormatted:   res.EndTime.In(b.loc).Format("02 Jan 2006 15:04 MST"),
		CurrentYear:        b.now().In(b.loc).Year(),
		Language:           res.Language,
		Status:             statusTranslation(status, res.Language),
	}
}

// Email returns subject, plain text body and HTML body.
func (b *MessageBuilder) Email(res db.Reservation, status string) (string, string, string, error) {
	data := b.emailData(res, status)

	var subject, plain string
	switch res.Language {
	case "es":
		subject = fmt.Sprintf("Tu reserva de estacionamiento está %s - %s", data.Status, data.ReservationID)
		plain = fmt.Sprintf(
			"Hola,\n\nTu reserva para la patente %s está %s.\n\n"+
				"Reserva: %s\nEspacio: %d\nCheck-in: %s\nCheck-out: %s\n",
			data.LicensePlate, data.Status, data.ReservationID, data.SpaceID,
			data.StartTimeFormatted, data.EndTimeFormatted,
		)
	case "it":
		subject = fmt.Sprintf("La tua prenotazione del parcheggio è %s - %s", data.Status, data.ReservationID)
		plain = fmt.Sprintf(
			"Ciao,\n\nLa prenotazione per la targa %s è %s.\n\n"+
				"Prenotazione: %s\nPosto: %d\nCheck-in: %s\nCheck-out: %s\n",
			data.LicensePlate, data.Status, data.ReservationID, data.SpaceID,
			data.StartTimeFormatted, data.EndTimeFormatted,
		)
	default:
		subject = fmt.Sprintf("Your parking reservation is %s - %s", data.Status, data.ReservationID)
		plain = fmt.Sprintf(
			"Hello,\n\nYour reservation for plate %s is %s.\n\n"+
				"Reservation: %s\nSpace: %d\nCheck-in: %s\nCheck-out: %s\n",
			data.LicensePlate, data.Status, data.ReservationID, data.SpaceID,
			data.StartTimeFormatted, data.EndTimeFormatted,
		)
	}

	var html bytes.Buffer
	if err := b.tmpl.Execute(&html, data); err != nil {
		return "", "", "", fmt.Errorf("rendering email for reservation %s: %w", res.ID, err)
	}
	return subject, plain, html.String(), nil
}

func (b *MessageBuilder) SMS(res db.Reservation, status string) string {
	translated := statusTranslation(status, res.Language)
	checkIn := res.StartTime.In(b.loc).Format("02/01 15:04")
	switch res.Language {
	case "es":
		return fmt.Sprintf("Estacionamiento: tu reserva %s está %s. Espacio %d, check-in %s.", res.ID, translated, res.SpaceID, checkIn)
	case "it":
		return fmt.Sprintf("Parcheggio: la prenotazione %s è %s. Posto %d, check-in %s.", res.ID, translated, res.SpaceID, checkIn)
	default:
		return fmt.Sprintf("Parking: reservation %s is %s. Space %d, check-in %s.", res.ID, translated, res.SpaceID, checkIn)
	}
}

func statusTranslation(status, lang string) string {
	switch lang {
	case "es":
		switch status {
		case statusConfirmed:
			return "confirmada"
		case statusCancelled:
			return "cancelada"
		}
	case "it":
		switch status {
		case statusConfirmed:
			return "confermata"
		case statusCancelled:
			return "annullata"
		}
	}
	return status
}

// NotificationDispatcher fans a status change out to every notifier on its own goroutine.
type NotificationDispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	log       logrus.FieldLogger
	wg        sync.WaitGroup
}

func NewNotificationDispatcher(log logrus.FieldLogger, notifiers ...Notifier) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifiers: notifiers,
		timeout:   30 * time.Second,
		log:       log,
	}
}

func (d *NotificationDispatcher) Dispatch(res db.Reservation, status string) {
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			err := n.Notify(ctx, res, status)
			if errors.Is(err, errNoRecipient) {
				return
			}
			if err != nil {
				d.log.WithError(err).WithFields(logrus.Fields{
					"notifier":       n.Name(),
					"reservation_id": res.ID,
					"status":         status,
				}).Warn("notification failed")
			}
		}(n)
	}
}

// Wait blocks until every in-flight notification has finished.
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}
