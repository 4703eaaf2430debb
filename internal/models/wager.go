package models

// DiceRollRequest is the body of POST /api/minigames/dice/roll.
// WagerID is optional: clients that retry requests send the same id so a
// replay returns the original result instead of debiting twice.
type DiceRollRequest struct {
	Bet     int64  `json:"bet" binding:"required"`
	WagerID string `json:"wager_id"`
}

// CupsPlayRequest is the body of POST /api/minigames/cups/play.
// Cup is a pointer because 0 is a valid choice and gin's required binding
// rejects zero values.
type CupsPlayRequest struct {
	Bet     int64  `json:"bet" binding:"required"`
	Cup     *int   `json:"cup" binding:"required"`
	WagerID string `json:"wager_id"`
}

// WagerOutcome is the raw chance result of one wager, generated server-side
// after funds are reserved. Dice fields are set for dice wagers, cup fields
// for cups wagers.
type WagerOutcome struct {
	Dice1    int  `json:"dice1,omitempty"`
	Dice2    int  `json:"dice2,omitempty"`
	Total    int  `json:"total,omitempty"`
	IsDouble bool `json:"is_double,omitempty"`

	ChosenCup  int `json:"chosen_cup"`
	CorrectCup int `json:"correct_cup"`
}

// PayoutEntry is one row of the published dice payout table.
type PayoutEntry struct {
	Total       int    `json:"total"`
	Multiplier  int64  `json:"multiplier"`
	Description string `json:"description"`
}

// SpecialRule documents a payout rule that isn't a straight total lookup.
type SpecialRule struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

// WagerResult is what one settled wager produced. It is returned to the
// caller, persisted under the wager id for idempotent replays, and copied
// into the transaction log. UserID binds the record to the account that
// placed it; a replay from any other account is rejected.
type WagerResult struct {
	WagerID    string       `json:"wager_id"`
	UserID     int64        `json:"user_id"`
	Game       GameID       `json:"game"`
	PlayerWon  bool         `json:"player_won"`
	Multiplier float64      `json:"multiplier"`
	BetAmount  int64        `json:"bet_amount"`
	Winnings   int64        `json:"winnings"`
	Balance    int64        `json:"balance"`
	Outcome    WagerOutcome `json:"outcome"`
	SettledAt  int64        `json:"settled_at"`
}
