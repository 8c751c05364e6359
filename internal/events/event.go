package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/payments-engine/internal/domain"
)

// EventTypeBalancesComputed is the eventType of every message this package publishes.
const EventTypeBalancesComputed = "balances.computed"

// displayPlaces matches the fractional digits of the CSV report.
const displayPlaces = 4

// BalancesComputedEvent is the payload published once a run has replayed its input.
type BalancesComputedEvent struct {
	EventID        string           `json:"eventId"`
	EventType      string           `json:"eventType"`
	EventTimestamp string           `json:"eventTimestamp"`
	RunID          string           `json:"runId"`
	Source         string           `json:"source"`
	Accounts       []AccountBalance `json:"accounts"`
}

// AccountBalance is one client row of a BalancesComputedEvent.
// Amounts are decimal strings to preserve precision (e.g. "100.5000").
type AccountBalance struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// NewBalancesComputedEvent builds the event for a finished run.
func NewBalancesComputedEvent(run *domain.Run, accounts []domain.ClientAccount, now time.Time) BalancesComputedEvent {
	balances := make([]AccountBalance, 0, len(accounts))
	for _, acc := range accounts {
		balances = append(balances, AccountBalance{
			Client:    acc.Client,
			Available: acc.Available.StringFixed(displayPlaces),
			Held:      acc.Held.StringFixed(displayPlaces),
			Total:     acc.Total.StringFixed(displayPlaces),
			Locked:    acc.Locked,
		})
	}

	return BalancesComputedEvent{
		EventID:        uuid.New().String(),
		EventType:      EventTypeBalancesComputed,
		EventTimestamp: now.UTC().Format(time.RFC3339),
		RunID:          run.ID.String(),
		Source:         run.Source,
		Accounts:       balances,
	}
}
