package models

// Wallet holds a user's spendable points. Balance is an integer number of
// points (smallest currency unit), never a float, and never negative.
type Wallet struct {
	UserID       int64 `json:"user_id" redis:"user_id"`
	Balance      int64 `json:"balance" redis:"balance"`
	TotalWagered int64 `json:"total_wagered" redis:"total_wagered"`
	TotalWon     int64 `json:"total_won" redis:"total_won"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
	UpdatedAt int64 `json:"updated_at" redis:"updated_at"`
}

type BalanceResponse struct {
	Balance      int64 `json:"balance"`
	TotalWagered int64 `json:"total_wagered"`
	TotalWon     int64 `json:"total_won"`
}
