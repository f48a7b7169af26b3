package normalization

import (
	"sort"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/tabular"
)

// SortTicks orders ticks by (trading date ASC, tick time ASC).
// Ticks with an invalid trading date sort last. The sort is stable, so equal
// keys keep file order.
func SortTicks(ticks []domain.TickRecord) {
	sort.SliceStable(ticks, func(i, j int) bool {
		return compareTicks(&ticks[i], &ticks[j]) < 0
	})
}

// compareTicks returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareTicks(a, b *domain.TickRecord) int {
	if a.DateValid != b.DateValid {
		if a.DateValid {
			return -1
		}
		return 1
	}
	if a.DateValid {
		if c := a.TradingDay.Compare(b.TradingDay); c != 0 {
			return c
		}
	}
	return tabular.Compare(a.TickTime, b.TickTime)
}
