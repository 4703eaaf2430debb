package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"minigames-backend/internal/models"
)

// MemoryStore is the in-process counterpart of RedisService: a per-account
// mutex ledger plus in-memory wager records. It serves dev mode (REDIS_URL=memory)
// and deterministic tests. Operations on different accounts never contend.
type MemoryStore struct {
	startingBalance int64

	mu      sync.RWMutex
	wallets map[int64]*memWallet

	recMu   sync.Mutex
	results map[string]*models.WagerResult
	claims  map[string]memClaim
	txs     map[int64][]*models.Transaction

	rlMu   sync.Mutex
	limits map[string]*rateWindow
}

type memWallet struct {
	mu     sync.Mutex
	wallet models.Wallet
}

type memClaim struct {
	userID int64
	expiry time.Time
}

type rateWindow struct {
	count int
	reset time.Time
}

func NewMemoryStore(startingBalance int64) *MemoryStore {
	return &MemoryStore{
		startingBalance: startingBalance,
		wallets:         make(map[int64]*memWallet),
		results:         make(map[string]*models.WagerResult),
		claims:          make(map[string]memClaim),
		txs:             make(map[int64][]*models.Transaction),
		limits:          make(map[string]*rateWindow),
	}
}

func (m *MemoryStore) wallet(userID int64) *memWallet {
	m.mu.RLock()
	w, ok := m.wallets[userID]
	m.mu.RUnlock()
	if ok {
		return w
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok = m.wallets[userID]; ok {
		return w
	}
	now := time.Now().Unix()
	w = &memWallet{wallet: models.Wallet{
		UserID:    userID,
		Balance:   m.startingBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	m.wallets[userID] = w
	return w
}

func (m *MemoryStore) GetWallet(userID int64) (*models.Wallet, error) {
	w := m.wallet(userID)
	w.mu.Lock()
	defer w.mu.Unlock()
	copied := w.wallet
	return &copied, nil
}

// SetBalance overwrites a wallet's balance. Test seam; the engine never
// calls it.
func (m *MemoryStore) SetBalance(userID int64, balance int64) {
	w := m.wallet(userID)
	w.mu.Lock()
	w.wallet.Balance = balance
	w.mu.Unlock()
}

// find looks up a wallet without creating one. Debits and credits refuse
// unknown accounts the same way the Redis scripts do; only reads auto-create.
func (m *MemoryStore) find(userID int64) (*memWallet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[userID]
	return w, ok
}

func (m *MemoryStore) Reserve(ctx context.Context, userID int64, amount int64) (int64, error) {
	w, ok := m.find(userID)
	if !ok {
		return 0, ErrWalletNotFound
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.wallet.Balance < amount {
		return 0, ErrInsufficientFunds
	}
	w.wallet.Balance -= amount
	w.wallet.TotalWagered += amount
	w.wallet.UpdatedAt = time.Now().Unix()
	return w.wallet.Balance, nil
}

func (m *MemoryStore) Credit(ctx context.Context, userID int64, amount int64) (int64, error) {
	w, ok := m.find(userID)
	if !ok {
		return 0, ErrWalletNotFound
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.wallet.Balance += amount
	w.wallet.TotalWon += amount
	w.wallet.UpdatedAt = time.Now().Unix()
	return w.wallet.Balance, nil
}

func (m *MemoryStore) Refund(ctx context.Context, userID int64, amount int64) (int64, error) {
	w, ok := m.find(userID)
	if !ok {
		return 0, ErrWalletNotFound
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.wallet.Balance += amount
	w.wallet.TotalWagered -= amount
	w.wallet.UpdatedAt = time.Now().Unix()
	return w.wallet.Balance, nil
}

func (m *MemoryStore) Balance(ctx context.Context, userID int64) (int64, error) {
	wallet, err := m.GetWallet(userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (m *MemoryStore) ClaimWager(ctx context.Context, userID int64, wagerID string) (bool, error) {
	m.recMu.Lock()
	defer m.recMu.Unlock()

	if claim, ok := m.claims[wagerID]; ok && time.Now().Before(claim.expiry) {
		return false, nil
	}
	m.claims[wagerID] = memClaim{userID: userID, expiry: time.Now().Add(TTLWagerClaim)}
	return true, nil
}

func (m *MemoryStore) ReleaseClaim(ctx context.Context, wagerID string) error {
	m.recMu.Lock()
	defer m.recMu.Unlock()

	delete(m.claims, wagerID)
	return nil
}

func (m *MemoryStore) GetWagerResult(ctx context.Context, wagerID string) (*models.WagerResult, error) {
	m.recMu.Lock()
	defer m.recMu.Unlock()

	result, ok := m.results[wagerID]
	if !ok {
		return nil, nil
	}
	copied := *result
	return &copied, nil
}

func (m *MemoryStore) SaveWagerResult(ctx context.Context, result *models.WagerResult) error {
	m.recMu.Lock()
	defer m.recMu.Unlock()

	if _, ok := m.results[result.WagerID]; ok {
		return nil // append-only, first write wins
	}
	copied := *result
	m.results[result.WagerID] = &copied
	return nil
}

func (m *MemoryStore) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	m.recMu.Lock()
	defer m.recMu.Unlock()

	copied := *tx
	m.txs[tx.UserID] = append(m.txs[tx.UserID], &copied)
	return nil
}

func (m *MemoryStore) GetUserTransactions(userID int64, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	m.recMu.Lock()
	defer m.recMu.Unlock()

	all := m.txs[userID]
	out := make([]*models.Transaction, 0, limit)
	for i := len(all) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		copied := *all[i]
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) CheckRateLimit(userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	m.rlMu.Lock()
	defer m.rlMu.Unlock()

	now := time.Now()
	win, ok := m.limits[key]
	if !ok || now.After(win.reset) {
		m.limits[key] = &rateWindow{count: 1, reset: now.Add(window)}
		return true, nil
	}
	win.count++
	return win.count <= limit, nil
}
