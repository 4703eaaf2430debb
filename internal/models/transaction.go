package models

import "time"

// Transaction is one append-only audit record per settled wager. The sum of
// (winnings - bet_amount) over a user's transactions must equal their balance
// minus their starting balance.
type Transaction struct {
	ID            string       `json:"id" redis:"id"`
	UserID        int64        `json:"user_id" redis:"user_id"`
	Game          GameID       `json:"game" redis:"game"`
	BetAmount     int64        `json:"bet_amount" redis:"bet_amount"`
	Multiplier    float64      `json:"multiplier" redis:"multiplier"`
	Winnings      int64        `json:"winnings" redis:"winnings"`
	PlayerWon     bool         `json:"player_won" redis:"player_won"`
	Outcome       WagerOutcome `json:"outcome" redis:"outcome"`
	BalanceBefore int64        `json:"balance_before" redis:"balance_before"`
	BalanceAfter  int64        `json:"balance_after" redis:"balance_after"`
	Description   string       `json:"description" redis:"description"`
	CreatedAt     time.Time    `json:"created_at" redis:"created_at"`
}
