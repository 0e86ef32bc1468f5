// Package domain contains the earnings calculation shared by live summaries
// and payout batch generation.
package domain

// Cents converts a view count and a CPM rate into earnings, using integer
// floor division. Every earnings figure in the system comes from this one
// function so summaries and payouts always reconcile.
func Cents(views, cpmCents int64) int64 {
	if views <= 0 || cpmCents <= 0 {
		return 0
	}
	return views * cpmCents / 1000
}
