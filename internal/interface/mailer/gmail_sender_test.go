package mailer

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"seatwatch-service/internal/domain/entity"
)

func TestBuildMessage(t *testing.T) {
	s := &GmailSender{from: "alerts@example.com", fromName: "Seatwatch"}

	msg := s.buildMessage("zuzana@example.com", "Seat available", "<html><body>Book now</body></html>")

	for _, header := range []string{
		"From: Seatwatch <alerts@example.com>\r\n",
		"To: zuzana@example.com\r\n",
		"Subject: Seat available\r\n",
		"Content-Type: text/html; charset=\"UTF-8\"\r\n",
		"\r\n\r\n<html>",
	} {
		if !strings.Contains(msg, header) {
			t.Errorf("message missing %q", header)
		}
	}
}

func TestBuildMessageWithoutFromName(t *testing.T) {
	s := &GmailSender{from: "alerts@example.com"}

	msg := s.buildMessage("zuzana@example.com", "Seat available", "body")
	if !strings.HasPrefix(msg, "From: alerts@example.com\r\n") {
		t.Errorf("unexpected From header in %q", msg)
	}
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	s := &GmailSender{from: "alerts@example.com"}

	msg := s.buildMessage("zuzana@example.com", "Sedadla jsou volná", "body")
	if !strings.Contains(msg, "Subject: =?utf-8?q?") {
		t.Errorf("non-ASCII subject must be Q-encoded, got %q", msg)
	}
}

func TestClassifySendError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{"rate limited", &googleapi.Error{Code: 429, Message: "rate limit exceeded"}, false},
		{"request timeout", &googleapi.Error{Code: 408, Message: "timeout"}, false},
		{"invalid recipient", &googleapi.Error{Code: 400, Message: "invalid to header"}, true},
		{"forbidden", &googleapi.Error{Code: 403, Message: "quota exceeded for user"}, true},
		{"server error", &googleapi.Error{Code: 500, Message: "backend error"}, false},
		{"plain transport error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifySendError(tt.err)
			if got == nil {
				t.Fatal("expected a classified error")
			}
			if entity.IsPermanent(got) != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v (err: %v)", entity.IsPermanent(got), tt.wantPermanent, got)
			}

			var apiErr *googleapi.Error
			if errors.As(tt.err, &apiErr) && !errors.As(got, &apiErr) {
				t.Error("original API error must stay unwrappable")
			}
		})
	}
}
