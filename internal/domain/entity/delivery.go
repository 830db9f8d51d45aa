package entity

import "time"

// DeliveryRecord is the audit entry written after a notification email
// was accepted by the mail provider
type DeliveryRecord struct {
	Recipient       string    `bson:"recipient"`
	Subject         string    `bson:"subject"`
	RouteID         uint      `bson:"routeId"`
	ProviderRouteID string    `bson:"providerRouteId"`
	MessageID       string    `bson:"messageId"`
	SentAt          time.Time `bson:"sentAt"`
}

// DeadLetter archives a task that exhausted its retry budget or failed permanently
type DeadLetter struct {
	TaskID    string    `bson:"taskId"`
	Kind      string    `bson:"kind"`
	Payload   string    `bson:"payload"`
	Attempts  int       `bson:"attempts"`
	LastError string    `bson:"lastError"`
	DeadAt    time.Time `bson:"deadAt"`
}
