package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/spbu-ds-practicum-2025/payments-engine/internal/domain"
)

// DisplayPlaces is the number of fractional digits amounts are rounded to in reports.
// Internal arithmetic is never rounded.
const DisplayPlaces = 4

var header = []string{"client", "available", "held", "total", "locked"}

// WriteAccounts writes a balance report to w, one row per client, ordered by client id.
func WriteAccounts(w io.Writer, accounts []domain.ClientAccount) error {
	sorted := slices.Clone(accounts)
	slices.SortFunc(sorted, func(a, b domain.ClientAccount) int {
		return int(a.Client) - int(b.Client)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, account := range sorted {
		if err := cw.Write(formatAccount(account)); err != nil {
			return fmt.Errorf("failed to write client %d: %w", account.Client, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

func formatAccount(a domain.ClientAccount) []string {
	return []string{
		strconv.FormatUint(uint64(a.Client), 10),
		a.Available.StringFixed(DisplayPlaces),
		a.Held.StringFixed(DisplayPlaces),
		a.Total.StringFixed(DisplayPlaces),
		strconv.FormatBool(a.Locked),
	}
}
