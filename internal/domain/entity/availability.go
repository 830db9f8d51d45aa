package entity

// Availability is the outcome of one seat availability check
type Availability struct {
	Available   bool
	FreeSeats   int
	PriceFrom   float64
	PriceTo     float64
	Currency    string
	BookingLink string
}
