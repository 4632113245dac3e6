package quota

import "time"

// Unlimited is the limit of plans without a monthly cap.
const Unlimited = -1

// MonthToken returns the calendar month of t in UTC as "YYYY-MM".
func MonthToken(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Usage is a user's message count for one month.
type Usage struct {
	UserID    string
	Count     int
	Month     string
	LastReset time.Time
}

// Reservation is the outcome of CheckAndReserve.
// Remaining is Unlimited (-1) for plans without a cap.
type Reservation struct {
	Allowed   bool `json:"-"`
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
}

// Consumed returns r as it reads once the reserved message is counted.
func (r Reservation) Consumed() Reservation {
	r.Used++
	if r.Remaining > 0 {
		r.Remaining--
	}
	return r
}
