package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateWagerID() string {
	return fmt.Sprintf("wager_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

// Validate checks the dice request against the game descriptor. Funds are
// checked later, at reserve time, not here.
func (r *DiceRollRequest) Validate(game Game) error {
	if r.Bet <= 0 {
		return fmt.Errorf("bet must be a positive number of points")
	}
	if !game.ValidBet(r.Bet) {
		return fmt.Errorf("bet must be between %d and %d points", game.MinBet, game.MaxBet)
	}
	return nil
}

func (r *CupsPlayRequest) Validate(game Game) error {
	if r.Bet <= 0 {
		return fmt.Errorf("bet must be a positive number of points")
	}
	if !game.ValidBet(r.Bet) {
		return fmt.Errorf("bet must be between %d and %d points", game.MinBet, game.MaxBet)
	}
	if r.Cup == nil || *r.Cup < 0 || *r.Cup > 2 {
		return fmt.Errorf("cup must be 0, 1 or 2")
	}
	return nil
}

func FormatPoints(points int64) string {
	return fmt.Sprintf("%d points", points)
}
