package domain

import "time"

// CreditAccount holds the one-off credit balance for a user, per check type.
type CreditAccount struct {
	UserID         string
	CheckType      CheckType
	CurrentBalance int
}

// SubscriptionCredits holds the use-or-lose subscription credit pool for a
// user, per check type. The table is keyed by (user, check type), so there
// is at most one row per pair, and DeductForBatch reads and consumes that
// single row (spec.md §9 open question #3).
type SubscriptionCredits struct {
	UserID       string
	CheckType    CheckType
	CreditsStart int
	CreditsLeft  int
	ExpiryTS     time.Time
}

// Expired reports whether the subscription credit row is no longer usable
// as of now.
func (s SubscriptionCredits) Expired(now time.Time) bool {
	return !s.ExpiryTS.After(now)
}

// CreditEventType enumerates why a CreditHistory row was written.
type CreditEventType string

const (
	EventUsage       CreditEventType = "usage"
	EventPurchase    CreditEventType = "purchase"
	EventReferReward CreditEventType = "refer_reward"
)

// CreditHistory is an append-only ledger entry.
type CreditHistory struct {
	UserID      string
	CheckType   CheckType
	CreditsUsed int
	EventType   CreditEventType
	BatchID     *int64
	UsageTS     time.Time
}
