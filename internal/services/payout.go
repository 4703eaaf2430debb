package services

import (
	"fmt"

	"minigames-backend/internal/models"
)

// diceWays[total] is how many of the 36 ordered dice pairs add up to total.
var diceWays = map[int]int{
	2: 1, 3: 2, 4: 3, 5: 4, 6: 5, 7: 6, 8: 5, 9: 4, 10: 3, 11: 2, 12: 1,
}

// DefaultDicePayouts is the product-configured base multiplier per total.
// Rarer totals pay more: 2 and 12 (1/36 each) pay 36x, 7 (6/36) pays nothing.
// A multiplier of 0 is a loss.
func DefaultDicePayouts() map[int]int64 {
	return map[int]int64{
		2:  36,
		3:  18,
		4:  12,
		5:  9,
		6:  6,
		7:  0,
		8:  6,
		9:  9,
		10: 12,
		11: 18,
		12: 36,
	}
}

const (
	DefaultCupsMultiplier = 3

	// Doubles scale the base multiplier by 3/2.
	doubleBonusNum = 3
	doubleBonusDen = 2
)

// PayoutTable maps wager outcomes to multipliers. It is immutable after
// construction.
type PayoutTable struct {
	dice map[int]int64
	cups int64
}

func NewPayoutTable(dice map[int]int64, cupsMultiplier int64) *PayoutTable {
	t := &PayoutTable{
		dice: make(map[int]int64, len(dice)),
		cups: cupsMultiplier,
	}
	for total, m := range dice {
		t.dice[total] = m
	}
	return t
}

// DiceBase returns the base multiplier for a total, before any double bonus.
func (t *PayoutTable) DiceBase(total int) int64 {
	return t.dice[total]
}

// DiceMultiplier returns the final multiplier for a draw. Doubles get a 1.5x
// bonus on top of the base.
func (t *PayoutTable) DiceMultiplier(total int, isDouble bool) float64 {
	base := t.dice[total]
	if isDouble {
		return float64(base) * float64(doubleBonusNum) / float64(doubleBonusDen)
	}
	return float64(base)
}

// DiceWinnings computes the integer payout for a dice wager. The 1.5x double
// bonus can yield a half point; the contract is round half down, which the
// truncating integer division implements (bet and multipliers are
// non-negative).
func (t *PayoutTable) DiceWinnings(bet int64, total int, isDouble bool) int64 {
	base := t.dice[total]
	if isDouble {
		return bet * base * doubleBonusNum / doubleBonusDen
	}
	return bet * base
}

func (t *PayoutTable) CupsMultiplier() int64 {
	return t.cups
}

func (t *PayoutTable) CupsWinnings(bet int64, chosen, correct int) int64 {
	if chosen != correct {
		return 0
	}
	return bet * t.cups
}

// DicePaybackRatio is the expected payout per point bet over the base table,
// ignoring the double bonus. Operators use it to inspect the configured edge;
// the table itself is product configuration, not something the engine tunes.
func (t *PayoutTable) DicePaybackRatio() float64 {
	var sum float64
	for total, ways := range diceWays {
		sum += float64(ways) * float64(t.dice[total])
	}
	return sum / 36
}

// Entries returns the table rows for the payout-table endpoint, ordered by
// total.
func (t *PayoutTable) Entries() []models.PayoutEntry {
	entries := make([]models.PayoutEntry, 0, 11)
	for total := 2; total <= 12; total++ {
		entries = append(entries, models.PayoutEntry{
			Total:       total,
			Multiplier:  t.dice[total],
			Description: payoutDescription(total, t.dice[total]),
		})
	}
	return entries
}

func payoutDescription(total int, multiplier int64) string {
	ways := diceWays[total]
	if multiplier == 0 {
		return fmt.Sprintf("%d ways in 36, no payout", ways)
	}
	if ways == 1 {
		return fmt.Sprintf("1 way in 36, pays %dx", multiplier)
	}
	return fmt.Sprintf("%d ways in 36, pays %dx", ways, multiplier)
}
