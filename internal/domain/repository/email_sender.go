package repository

import "context"

// EmailSender delivers a single notification email and returns the provider
// message id. Permanently rejected messages come back wrapped with
// entity.Permanent so the queue dead-letters them instead of retrying.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}
