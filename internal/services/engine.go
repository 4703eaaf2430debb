package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"minigames-backend/internal/models"
)

// Ledger is the balance store. Reserve is the sole serialization point for
// debits: the balance check and the decrement are one atomic step per
// account, and operations on different accounts are independent.
type Ledger interface {
	Reserve(ctx context.Context, userID int64, amount int64) (int64, error)
	Credit(ctx context.Context, userID int64, amount int64) (int64, error)
	Refund(ctx context.Context, userID int64, amount int64) (int64, error)
	Balance(ctx context.Context, userID int64) (int64, error)
}

// WagerLog records settled wagers: the write-once result per wager id that
// makes retries idempotent, plus the append-only audit transaction. Claims
// and results carry the owning user id so one account can never replay
// another account's wager.
type WagerLog interface {
	ClaimWager(ctx context.Context, userID int64, wagerID string) (bool, error)
	ReleaseClaim(ctx context.Context, wagerID string) error
	GetWagerResult(ctx context.Context, wagerID string) (*models.WagerResult, error)
	SaveWagerResult(ctx context.Context, result *models.WagerResult) error
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
}

// Broadcaster pushes settled wagers to live feed subscribers. Optional.
type Broadcaster interface {
	WagerSettled(result *models.WagerResult)
}

const (
	settleAttempts = 3
	settleBackoff  = 50 * time.Millisecond

	// How long a duplicate request waits for the first one to settle.
	replayWait     = 2 * time.Second
	replayInterval = 50 * time.Millisecond
)

// WagerEngine runs one wager through Validated -> Reserved -> Resolved ->
// Settled, or rejects it with no funds moved. Once Reserve succeeds the wager
// always runs to Settle within the same request; there is no cancellation.
type WagerEngine struct {
	ledger      Ledger
	wagerLog    WagerLog
	rng         OutcomeSource
	payouts     *PayoutTable
	games       map[models.GameID]models.Game
	broadcaster Broadcaster
}

func NewWagerEngine(ledger Ledger, wagerLog WagerLog, rng OutcomeSource, payouts *PayoutTable, games []models.Game) *WagerEngine {
	catalog := make(map[models.GameID]models.Game, len(games))
	for _, g := range games {
		catalog[g.ID] = g
	}
	return &WagerEngine{
		ledger:   ledger,
		wagerLog: wagerLog,
		rng:      rng,
		payouts:  payouts,
		games:    catalog,
	}
}

// SetBroadcaster attaches the live feed. Called once during startup wiring.
func (e *WagerEngine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

func (e *WagerEngine) Games() []models.Game {
	out := make([]models.Game, 0, len(e.games))
	for _, id := range []models.GameID{models.GameDice, models.GameCups} {
		if g, ok := e.games[id]; ok {
			out = append(out, g)
		}
	}
	return out
}

func (e *WagerEngine) Game(id models.GameID) (models.Game, bool) {
	g, ok := e.games[id]
	return g, ok
}

func (e *WagerEngine) PayoutTable() *PayoutTable {
	return e.payouts
}

func (e *WagerEngine) Balance(ctx context.Context, userID int64) (int64, error) {
	return e.ledger.Balance(ctx, userID)
}

// RollDice places a dice wager: debit the bet, roll two dice, pay
// bet * multiplier(total), with a 1.5x bonus on doubles.
func (e *WagerEngine) RollDice(ctx context.Context, userID int64, req *models.DiceRollRequest) (*models.WagerResult, error) {
	game := e.games[models.GameDice]
	if err := req.Validate(game); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBet, err)
	}

	return e.place(ctx, userID, game, req.Bet, req.WagerID, func() (models.WagerOutcome, float64, int64) {
		d1, d2 := e.rng.DrawDice()
		outcome := models.WagerOutcome{
			Dice1:    d1,
			Dice2:    d2,
			Total:    d1 + d2,
			IsDouble: d1 == d2,
		}
		multiplier := e.payouts.DiceMultiplier(outcome.Total, outcome.IsDouble)
		winnings := e.payouts.DiceWinnings(req.Bet, outcome.Total, outcome.IsDouble)
		return outcome, multiplier, winnings
	})
}

// PlayCups places a cups wager: debit the bet, draw the correct cup, pay 3x
// when the player's choice matches.
func (e *WagerEngine) PlayCups(ctx context.Context, userID int64, req *models.CupsPlayRequest) (*models.WagerResult, error) {
	game := e.games[models.GameCups]
	if err := req.Validate(game); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBet, err)
	}

	chosen := *req.Cup
	return e.place(ctx, userID, game, req.Bet, req.WagerID, func() (models.WagerOutcome, float64, int64) {
		correct := e.rng.DrawCup()
		outcome := models.WagerOutcome{
			ChosenCup:  chosen,
			CorrectCup: correct,
		}
		var multiplier float64
		if chosen == correct {
			multiplier = float64(e.payouts.CupsMultiplier())
		}
		winnings := e.payouts.CupsWinnings(req.Bet, chosen, correct)
		return outcome, multiplier, winnings
	})
}

// place is the shared wager path. resolve runs exactly once per wager id,
// strictly after funds are reserved.
func (e *WagerEngine) place(ctx context.Context, userID int64, game models.Game, bet int64, wagerID string,
	resolve func() (models.WagerOutcome, float64, int64)) (*models.WagerResult, error) {

	if wagerID == "" {
		wagerID = models.GenerateWagerID()
	} else {
		// Replay of a known id returns the original result, funds untouched.
		existing, err := e.wagerLog.GetWagerResult(ctx, wagerID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.UserID != userID {
				return nil, fmt.Errorf("%w: wager id belongs to a different account", ErrInvalidBet)
			}
			return existing, nil
		}
	}

	claimed, err := e.wagerLog.ClaimWager(ctx, userID, wagerID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return e.awaitReplay(ctx, userID, wagerID)
	}

	// Reserved: atomic check-and-decrement. On failure nothing has moved, so
	// the claim is released and the id can be retried fresh.
	reserved, err := e.ledger.Reserve(ctx, userID, bet)
	if err != nil {
		e.releaseClaim(ctx, wagerID)
		return nil, err
	}

	// Resolved: the draw happens only now, server-side, post-reserve.
	outcome, multiplier, winnings := resolve()

	// Settled: credit winnings and record the wager. A reserve without a
	// matching settlement is never left behind.
	balance, err := e.settle(ctx, userID, bet, winnings, reserved)
	if err != nil {
		e.releaseClaim(ctx, wagerID)
		return nil, err
	}

	result := &models.WagerResult{
		WagerID:    wagerID,
		UserID:     userID,
		Game:       game.ID,
		PlayerWon:  multiplier > 0 && winnings > 0,
		Multiplier: multiplier,
		BetAmount:  bet,
		Winnings:   winnings,
		Balance:    balance,
		Outcome:    outcome,
		SettledAt:  time.Now().Unix(),
	}

	// Funds are settled; losing the record would allow a double debit on
	// replay, so a failed write fails the wager response too.
	if err := e.record(ctx, result); err != nil {
		log.Printf("ALERT: settled wager %s for user %d has no record: %v", wagerID, userID, err)
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	if e.broadcaster != nil {
		e.broadcaster.WagerSettled(result)
	}

	return result, nil
}

func (e *WagerEngine) releaseClaim(ctx context.Context, wagerID string) {
	if err := e.wagerLog.ReleaseClaim(ctx, wagerID); err != nil {
		log.Printf("failed to release claim %s: %v", wagerID, err)
	}
}

// settle credits winnings with bounded retries. If the credit cannot be
// applied the reservation is rolled back; funds are never silently dropped.
func (e *WagerEngine) settle(ctx context.Context, userID int64, bet, winnings, reservedBalance int64) (int64, error) {
	if winnings == 0 {
		return reservedBalance, nil
	}

	var lastErr error
	for attempt := 0; attempt < settleAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(settleBackoff << (attempt - 1))
		}
		balance, err := e.ledger.Credit(ctx, userID, winnings)
		if err == nil {
			return balance, nil
		}
		lastErr = err
		log.Printf("credit attempt %d failed for user %d: %v", attempt+1, userID, err)
	}

	if _, err := e.ledger.Refund(ctx, userID, bet); err != nil {
		// Both credit and refund failing leaves a reserve on the books;
		// the claim record plus this log line is what operators reconcile from.
		log.Printf("ALERT: refund after failed settlement also failed for user %d: %v", userID, err)
	}

	return 0, fmt.Errorf("%w: %v", ErrSettlementFailed, lastErr)
}

// record persists the result and the audit transaction with bounded retries.
// The result is written first: once it is in, a retried request replays it
// instead of re-running the wager.
func (e *WagerEngine) record(ctx context.Context, result *models.WagerResult) error {
	if err := e.withRetries(func() error {
		return e.wagerLog.SaveWagerResult(ctx, result)
	}); err != nil {
		return fmt.Errorf("save wager result %s: %v", result.WagerID, err)
	}

	tx := &models.Transaction{
		ID:            result.WagerID,
		UserID:        result.UserID,
		Game:          result.Game,
		BetAmount:     result.BetAmount,
		Multiplier:    result.Multiplier,
		Winnings:      result.Winnings,
		PlayerWon:     result.PlayerWon,
		Outcome:       result.Outcome,
		BalanceBefore: result.Balance + result.BetAmount - result.Winnings,
		BalanceAfter:  result.Balance,
		Description:   describeWager(result),
		CreatedAt:     time.Now(),
	}
	if err := e.withRetries(func() error {
		return e.wagerLog.AppendTransaction(ctx, tx)
	}); err != nil {
		return fmt.Errorf("append transaction %s: %v", tx.ID, err)
	}
	return nil
}

func (e *WagerEngine) withRetries(op func() error) error {
	var lastErr error
	for attempt := 0; attempt < settleAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(settleBackoff << (attempt - 1))
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// awaitReplay handles a duplicate request that lost the claim race: wait
// briefly for the original to settle and return its result.
func (e *WagerEngine) awaitReplay(ctx context.Context, userID int64, wagerID string) (*models.WagerResult, error) {
	deadline := time.Now().Add(replayWait)
	for time.Now().Before(deadline) {
		result, err := e.wagerLog.GetWagerResult(ctx, wagerID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			if result.UserID != userID {
				return nil, fmt.Errorf("%w: wager id belongs to a different account", ErrInvalidBet)
			}
			return result, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(replayInterval):
		}
	}
	return nil, ErrWagerInProgress
}

func describeWager(result *models.WagerResult) string {
	switch result.Game {
	case models.GameDice:
		return fmt.Sprintf("Dice roll %d+%d=%d at %.1fx for %d",
			result.Outcome.Dice1, result.Outcome.Dice2, result.Outcome.Total,
			result.Multiplier, result.BetAmount)
	case models.GameCups:
		return fmt.Sprintf("Cups pick %d vs %d at %.0fx for %d",
			result.Outcome.ChosenCup, result.Outcome.CorrectCup,
			result.Multiplier, result.BetAmount)
	default:
		return string(result.Game)
	}
}
