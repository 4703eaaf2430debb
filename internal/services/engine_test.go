package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"minigames-backend/internal/models"
	"minigames-backend/internal/services"
)

// scriptedSource returns fixed outcomes so settlement math is deterministic.
type scriptedSource struct {
	d1, d2 int
	cup    int
}

func (s *scriptedSource) DrawDice() (int, int) { return s.d1, s.d2 }
func (s *scriptedSource) DrawCup() int         { return s.cup }

func newTestEngine(source services.OutcomeSource, userID, startingBalance int64) (*services.WagerEngine, *services.MemoryStore) {
	store := services.NewMemoryStore(startingBalance)
	store.GetWallet(userID) // debits refuse unknown accounts
	payouts := services.NewPayoutTable(services.DefaultDicePayouts(), services.DefaultCupsMultiplier)
	games := models.DefaultGames(10, 1000, 10, 1000)
	engine := services.NewWagerEngine(store, store, source, payouts, games)
	return engine, store
}

func TestDiceWagerWin(t *testing.T) {
	engine, store := newTestEngine(&scriptedSource{d1: 5, d2: 6}, 1, 1000)
	ctx := context.Background()
	userID := int64(1)

	result, err := engine.RollDice(ctx, userID, &models.DiceRollRequest{Bet: 50})
	if err != nil {
		t.Fatalf("Failed to roll dice: %v", err)
	}

	if !result.PlayerWon {
		t.Error("a total of 11 should win")
	}
	if result.Outcome.Total != 11 {
		t.Errorf("expected total 11, got %d", result.Outcome.Total)
	}
	if result.Multiplier != 18 {
		t.Errorf("expected multiplier 18, got %.2f", result.Multiplier)
	}
	if result.Winnings != 900 {
		t.Errorf("expected winnings 900, got %d", result.Winnings)
	}
	if result.Balance != 1850 {
		t.Errorf("expected balance 1850 (1000 - 50 + 900), got %d", result.Balance)
	}

	balance, err := store.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	if balance != 1850 {
		t.Errorf("ledger balance should be 1850, got %d", balance)
	}

	txs, err := store.GetUserTransactions(userID, 10)
	if err != nil {
		t.Fatalf("Failed to read transactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(txs))
	}
	if txs[0].BalanceBefore != 1000 || txs[0].BalanceAfter != 1850 {
		t.Errorf("log entry balances wrong: before %d, after %d", txs[0].BalanceBefore, txs[0].BalanceAfter)
	}
}

func TestDiceWagerLoss(t *testing.T) {
	engine, store := newTestEngine(&scriptedSource{d1: 3, d2: 4}, 2, 1000)
	ctx := context.Background()
	userID := int64(2)

	result, err := engine.RollDice(ctx, userID, &models.DiceRollRequest{Bet: 50})
	if err != nil {
		t.Fatalf("Failed to roll dice: %v", err)
	}

	if result.PlayerWon {
		t.Error("a total of 7 should lose")
	}
	if result.Multiplier != 0 || result.Winnings != 0 {
		t.Errorf("expected zero multiplier and winnings, got %.2f / %d", result.Multiplier, result.Winnings)
	}
	if result.Balance != 950 {
		t.Errorf("expected balance 950, got %d", result.Balance)
	}

	balance, _ := store.Balance(ctx, userID)
	if balance != 950 {
		t.Errorf("ledger balance should be 950, got %d", balance)
	}
}

func TestDiceDoubleBonus(t *testing.T) {
	engine, _ := newTestEngine(&scriptedSource{d1: 3, d2: 3}, 3, 1000)
	ctx := context.Background()

	result, err := engine.RollDice(ctx, int64(3), &models.DiceRollRequest{Bet: 50})
	if err != nil {
		t.Fatalf("Failed to roll dice: %v", err)
	}

	if !result.Outcome.IsDouble {
		t.Error("3+3 should be flagged as a double")
	}
	if result.Multiplier != 9 {
		t.Errorf("expected multiplier 9 (base 6 * 1.5), got %.2f", result.Multiplier)
	}
	if result.Winnings != 450 {
		t.Errorf("expected winnings 450, got %d", result.Winnings)
	}
}

func TestCupsWagerWin(t *testing.T) {
	engine, store := newTestEngine(&scriptedSource{cup: 2}, 4, 200)
	ctx := context.Background()
	userID := int64(4)
	cup := 2

	result, err := engine.PlayCups(ctx, userID, &models.CupsPlayRequest{Bet: 100, Cup: &cup})
	if err != nil {
		t.Fatalf("Failed to play cups: %v", err)
	}

	if !result.PlayerWon {
		t.Error("matching cup should win")
	}
	if result.Winnings != 300 {
		t.Errorf("expected winnings 300, got %d", result.Winnings)
	}
	if result.Balance != 400 {
		t.Errorf("expected balance 400 (200 - 100 + 300), got %d", result.Balance)
	}

	balance, _ := store.Balance(ctx, userID)
	if balance != 400 {
		t.Errorf("ledger balance should be 400, got %d", balance)
	}
}

func TestCupsWagerLoss(t *testing.T) {
	engine, _ := newTestEngine(&scriptedSource{cup: 1}, 5, 200)
	ctx := context.Background()
	cup := 2

	result, err := engine.PlayCups(ctx, int64(5), &models.CupsPlayRequest{Bet: 100, Cup: &cup})
	if err != nil {
		t.Fatalf("Failed to play cups: %v", err)
	}

	if result.PlayerWon {
		t.Error("wrong cup should lose")
	}
	if result.Outcome.CorrectCup != 1 {
		t.Errorf("expected correct cup 1, got %d", result.Outcome.CorrectCup)
	}
	if result.Balance != 100 {
		t.Errorf("expected balance 100, got %d", result.Balance)
	}
}

func TestBetBoundaries(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		bet     int64
		allowed bool
	}{
		{9, false},
		{10, true},
		{1000, true},
		{1001, false},
		{0, false},
		{-50, false},
	}

	for _, tc := range cases {
		engine, _ := newTestEngine(&scriptedSource{d1: 3, d2: 4}, 6, 100000)
		_, err := engine.RollDice(ctx, int64(6), &models.DiceRollRequest{Bet: tc.bet})
		if tc.allowed && err != nil {
			t.Errorf("bet %d should be accepted, got %v", tc.bet, err)
		}
		if !tc.allowed && !errors.Is(err, services.ErrInvalidBet) {
			t.Errorf("bet %d should be rejected with ErrInvalidBet, got %v", tc.bet, err)
		}
	}
}

func TestInvalidCup(t *testing.T) {
	engine, _ := newTestEngine(&scriptedSource{cup: 0}, 7, 1000)
	ctx := context.Background()

	for _, cup := range []int{-1, 3} {
		c := cup
		_, err := engine.PlayCups(ctx, int64(7), &models.CupsPlayRequest{Bet: 100, Cup: &c})
		if !errors.Is(err, services.ErrInvalidBet) {
			t.Errorf("cup %d should be rejected with ErrInvalidBet, got %v", cup, err)
		}
	}
}

func TestInsufficientFunds(t *testing.T) {
	engine, store := newTestEngine(&scriptedSource{d1: 5, d2: 6}, 8, 40)
	ctx := context.Background()
	userID := int64(8)

	_, err := engine.RollDice(ctx, userID, &models.DiceRollRequest{Bet: 50})
	if !errors.Is(err, services.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	balance, _ := store.Balance(ctx, userID)
	if balance != 40 {
		t.Errorf("a rejected wager must not move funds; balance is %d", balance)
	}
}

func TestWagerIdempotency(t *testing.T) {
	engine, store := newTestEngine(&scriptedSource{d1: 5, d2: 6}, 9, 1000)
	ctx := context.Background()
	userID := int64(9)

	req := &models.DiceRollRequest{Bet: 50, WagerID: "wager_test_replay"}

	first, err := engine.RollDice(ctx, userID, req)
	if err != nil {
		t.Fatalf("Failed to roll dice: %v", err)
	}

	replay, err := engine.RollDice(ctx, userID, req)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if *replay != *first {
		t.Errorf("replay returned a different result: %+v vs %+v", replay, first)
	}

	balance, _ := store.Balance(ctx, userID)
	if balance != 1850 {
		t.Errorf("replay must not move funds again; balance is %d, expected 1850", balance)
	}
}

func TestConcurrentWagersReconcile(t *testing.T) {
	engine, store := newTestEngine(&scriptedSource{d1: 2, d2: 3}, 10, 100000)
	ctx := context.Background()
	userID := int64(10)

	const wagers = 50
	const bet = 100

	var wg sync.WaitGroup
	results := make([]*models.WagerResult, wagers)
	errs := make([]error, wagers)

	for i := 0; i < wagers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.RollDice(ctx, userID, &models.DiceRollRequest{Bet: bet})
		}(i)
	}
	wg.Wait()

	var totalWinnings int64
	for i := 0; i < wagers; i++ {
		if errs[i] != nil {
			t.Fatalf("wager %d failed: %v", i, errs[i])
		}
		totalWinnings += results[i].Winnings
	}

	balance, _ := store.Balance(ctx, userID)
	want := int64(100000) - wagers*bet + totalWinnings
	if balance != want {
		t.Errorf("balance does not reconcile: expected %d, got %d", want, balance)
	}
}

func TestConcurrentWagersNeverOverdraw(t *testing.T) {
	// Balance covers exactly one of the ten competing bets.
	engine, store := newTestEngine(&scriptedSource{d1: 3, d2: 4}, 11, 60)
	ctx := context.Background()
	userID := int64(11)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.RollDice(ctx, userID, &models.DiceRollRequest{Bet: 60})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, services.ErrInsufficientFunds) {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("exactly one wager should pass the reserve check, %d did", succeeded)
	}

	balance, _ := store.Balance(ctx, userID)
	if balance < 0 {
		t.Errorf("balance went negative: %d", balance)
	}
	if balance != 0 {
		t.Errorf("expected balance 0 after the single losing wager, got %d", balance)
	}
}

// failingCreditLedger simulates a store that accepts the debit but cannot
// apply the credit.
type failingCreditLedger struct {
	*services.MemoryStore
}

func (l *failingCreditLedger) Credit(ctx context.Context, userID int64, amount int64) (int64, error) {
	return 0, fmt.Errorf("credit unavailable")
}

func TestSettlementFailureRollsBack(t *testing.T) {
	store := services.NewMemoryStore(1000)
	store.GetWallet(12)
	payouts := services.NewPayoutTable(services.DefaultDicePayouts(), services.DefaultCupsMultiplier)
	games := models.DefaultGames(10, 1000, 10, 1000)
	engine := services.NewWagerEngine(&failingCreditLedger{store}, store, &scriptedSource{d1: 5, d2: 6}, payouts, games)

	ctx := context.Background()
	userID := int64(12)

	_, err := engine.RollDice(ctx, userID, &models.DiceRollRequest{Bet: 50})
	if !errors.Is(err, services.ErrSettlementFailed) {
		t.Fatalf("expected ErrSettlementFailed, got %v", err)
	}

	balance, _ := store.Balance(ctx, userID)
	if balance != 1000 {
		t.Errorf("reservation should be refunded after failed settlement; balance is %d", balance)
	}
}

// failingLogStore accepts money movements but cannot persist wager records.
type failingLogStore struct {
	*services.MemoryStore
}

func (s *failingLogStore) SaveWagerResult(ctx context.Context, result *models.WagerResult) error {
	return fmt.Errorf("log unavailable")
}

func TestUnrecordedSettlementFails(t *testing.T) {
	store := services.NewMemoryStore(1000)
	store.GetWallet(13)
	payouts := services.NewPayoutTable(services.DefaultDicePayouts(), services.DefaultCupsMultiplier)
	games := models.DefaultGames(10, 1000, 10, 1000)
	engine := services.NewWagerEngine(store, &failingLogStore{store}, &scriptedSource{d1: 5, d2: 6}, payouts, games)

	ctx := context.Background()
	userID := int64(13)

	_, err := engine.RollDice(ctx, userID, &models.DiceRollRequest{Bet: 50, WagerID: "wager_test_norecord"})
	if !errors.Is(err, services.ErrSettlementFailed) {
		t.Fatalf("an unrecorded wager must not report success, got %v", err)
	}
}

func TestClaimReleasedAfterRejectedWager(t *testing.T) {
	engine, store := newTestEngine(&scriptedSource{d1: 5, d2: 6}, 14, 40)
	ctx := context.Background()
	userID := int64(14)

	req := &models.DiceRollRequest{Bet: 50, WagerID: "wager_test_topup"}

	_, err := engine.RollDice(ctx, userID, req)
	if !errors.Is(err, services.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Top up and retry the same id. The rejected attempt moved no funds, so
	// the id must be usable again immediately.
	store.SetBalance(userID, 1000)

	result, err := engine.RollDice(ctx, userID, req)
	if err != nil {
		t.Fatalf("retry after top-up failed: %v", err)
	}
	if result.Balance != 1850 {
		t.Errorf("expected balance 1850 after retried wager, got %d", result.Balance)
	}
}

func TestWagerReplayBoundToAccount(t *testing.T) {
	engine, store := newTestEngine(&scriptedSource{d1: 5, d2: 6}, 15, 1000)
	ctx := context.Background()
	owner := int64(15)
	other := int64(16)
	store.GetWallet(other)

	req := &models.DiceRollRequest{Bet: 50, WagerID: "wager_test_owner"}

	first, err := engine.RollDice(ctx, owner, req)
	if err != nil {
		t.Fatalf("Failed to roll dice: %v", err)
	}

	// Another account replaying the same id gets nothing: no result, no debit.
	_, err = engine.RollDice(ctx, other, req)
	if !errors.Is(err, services.ErrInvalidBet) {
		t.Fatalf("foreign replay should be rejected with ErrInvalidBet, got %v", err)
	}

	otherBalance, _ := store.Balance(ctx, other)
	if otherBalance != 1000 {
		t.Errorf("foreign replay must not move funds; balance is %d", otherBalance)
	}

	replay, err := engine.RollDice(ctx, owner, req)
	if err != nil {
		t.Fatalf("owner replay failed: %v", err)
	}
	if *replay != *first {
		t.Errorf("owner replay returned a different result: %+v vs %+v", replay, first)
	}
}
