package models

type GameID string

const (
	GameDice GameID = "dice"
	GameCups GameID = "cups"
)

// Game is the static descriptor for one mini-game. The catalog is built once
// at startup from config and never mutated afterwards.
type Game struct {
	ID          GameID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	MinBet      int64  `json:"minBet"`
	MaxBet      int64  `json:"maxBet"`
}

// ValidBet reports whether amount is inside the game's betting range.
func (g Game) ValidBet(amount int64) bool {
	return amount >= g.MinBet && amount <= g.MaxBet
}

// DefaultGames builds the two-game catalog with the configured bet bounds.
func DefaultGames(diceMin, diceMax, cupsMin, cupsMax int64) []Game {
	return []Game{
		{
			ID:          GameDice,
			Name:        "Dice",
			Description: "Roll two dice. Rare totals pay big, doubles pay 1.5x extra.",
			Icon:        "🎲",
			MinBet:      diceMin,
			MaxBet:      diceMax,
		},
		{
			ID:          GameCups,
			Name:        "Cups",
			Description: "Pick the cup hiding the ball. A correct pick pays 3x.",
			Icon:        "🥤",
			MinBet:      cupsMin,
			MaxBet:      cupsMax,
		},
	}
}
