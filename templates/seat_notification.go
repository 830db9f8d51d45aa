// Package templates renders notification emails.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// SeatNotificationData feeds the found-seat email template
type SeatNotificationData struct {
	FromName    string
	ToName      string
	DepartureAt time.Time
	FreeSeats   int
	PriceFrom   float64
	PriceTo     float64
	Currency    string
	BookingLink string
}

var seatNotificationTmpl = template.Must(template.New("seatNotification").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Seats are available again!</h2>
  <p>
    A seat just opened up on the route you are watching:
  </p>
  <p style="font-size: 16px;">
    <strong>{{.FromName}} &rarr; {{.ToName}}</strong><br>
    Departure: <strong>{{.Departure}}</strong>
  </p>
  <p>
    Free seats: <strong>{{.FreeSeats}}</strong><br>
    Price: <strong>{{.PriceRange}}</strong>
  </p>
  <p>
    <a href="{{.BookingLink}}" style="display: inline-block; padding: 10px 18px; background: #ff5f00; color: #fff; text-decoration: none; border-radius: 4px;">Book now</a>
  </p>
  <p style="color: #777; font-size: 12px;">
    Seats sell fast. This watch is finished; restart it from your dashboard if you miss the seat.
  </p>
</body>
</html>`))

type seatNotificationView struct {
	FromName    string
	ToName      string
	Departure   string
	FreeSeats   int
	PriceRange  string
	BookingLink string
}

// RenderSeatNotification renders the subject and HTML body for a found-seat
// email. Departure times are shown in the given location, the timezone the
// route's travelers live in.
func RenderSeatNotification(data SeatNotificationData, loc *time.Location) (string, string, error) {
	departure := data.DepartureAt.In(loc).Format("Mon 02 Jan 2006 15:04")

	subject := fmt.Sprintf("Seat available: %s to %s on %s",
		data.FromName, data.ToName, data.DepartureAt.In(loc).Format("02 Jan 15:04"))

	view := seatNotificationView{
		FromName:    data.FromName,
		ToName:      data.ToName,
		Departure:   departure,
		FreeSeats:   data.FreeSeats,
		PriceRange:  formatPriceRange(data.PriceFrom, data.PriceTo, data.Currency),
		BookingLink: data.BookingLink,
	}

	var body bytes.Buffer
	if err := seatNotificationTmpl.Execute(&body, view); err != nil {
		return "", "", fmt.Errorf("render seat notification: %w", err)
	}

	return subject, body.String(), nil
}

func formatPriceRange(from, to float64, currency string) string {
	if to > from {
		return fmt.Sprintf("%.2f - %.2f %s", from, to, currency)
	}
	return fmt.Sprintf("%.2f %s", from, currency)
}
