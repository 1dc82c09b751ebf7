// Package business defines owned business items' daily revenue accrual
// (§4.10 Business revenue).
package business

import "time"

// RevenueEntry is one row in the business revenue history ledger, recorded
// each time the scheduler ticks a business item forward (§4.10).
type RevenueEntry struct {
	ID            string
	UserID        string
	ItemID        string
	GrossRevenue  int64
	OperatingCost int64
	NetRevenue    int64
	TickedAt      time.Time
}

// NetRevenue computes gross minus operating cost, floored at zero: a
// business never pays the owner to operate (§4.10 "net revenue is never
// negative").
func NetRevenue(gross, operatingCost int64) int64 {
	net := gross - operatingCost
	if net < 0 {
		return 0
	}
	return net
}
