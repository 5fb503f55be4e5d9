package loyalty

import "time"

type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// thresholds is ordered by ascending minimum balance.
var thresholds = []struct {
	tier Tier
	min  int
}{
	{TierBronze, 0},
	{TierSilver, 500},
	{TierGold, 1500},
	{TierPlatinum, 3000},
}

// TierFor returns the highest tier whose threshold is <= points.
func TierFor(points int) Tier {
	t := TierBronze
	for _, th := range thresholds {
		if points >= th.min {
			t = th.tier
		}
	}
	return t
}

// NextTier returns the tier above the one points currently reach and the
// points still missing. ok is false at the top tier.
func NextTier(points int) (next Tier, missing int, ok bool) {
	for _, th := range thresholds {
		if th.min > points {
			return th.tier, th.min - points, true
		}
	}
	return "", 0, false
}

type TxType string

const (
	TxEarned   TxType = "earned"
	TxRedeemed TxType = "redeemed"
	TxReversed TxType = "reversed"
)

// Account is one customer's loyalty state.
type Account struct {
	CustomerID    string     `json:"user_id"`
	Points        int        `json:"points"`
	Tier          Tier       `json:"level"`
	StreakDays    int        `json:"streak_days"`
	LastOrderDate *time.Time `json:"last_order_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewAccount opens an empty Bronze account.
func NewAccount(customerID string, now time.Time) *Account {
	return &Account{CustomerID: customerID, Tier: TierBronze, CreatedAt: now, UpdatedAt: now}
}

func (a *Account) add(points int, now time.Time) {
	a.Points += points
	if a.Points < 0 {
		a.Points = 0
	}
	a.Tier = TierFor(a.Points)
	a.UpdatedAt = now
}

// updateStreak advances the consecutive-day counter for an order placed on asOf.
func (a *Account) updateStreak(asOf time.Time) {
	day := calendarDay(asOf)
	if a.LastOrderDate == nil {
		a.StreakDays = 1
		a.LastOrderDate = &day
		return
	}
	gap := int(day.Sub(calendarDay(*a.LastOrderDate)).Hours() / 24)
	switch {
	case gap < 0:
		// an older order never rewinds the streak
		return
	case gap == 0:
	case gap == 1:
		a.StreakDays++
	default:
		a.StreakDays = 1
	}
	a.LastOrderDate = &day
}

func calendarDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Transaction is an immutable, signed points movement.
type Transaction struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"user_id"`
	Type       TxType    `json:"transaction_type"`
	Points     int       `json:"points"`
	Reason     string    `json:"description"`
	OrderID    string    `json:"order_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Result is the outcome of a points movement.
type Result struct {
	Account     Account      `json:"account"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

type Summary struct {
	Account          Account `json:"account"`
	NextTier         Tier    `json:"next_level,omitempty"`
	PointsToNextTier *int    `json:"next_level_points,omitempty"`
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	CustomerID string `json:"user_id"`
	Points     int    `json:"points"`
	Tier       Tier   `json:"level"`
}
