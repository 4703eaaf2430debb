package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"minigames-backend/internal/config"
	"minigames-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisService backs the balance ledger, the transaction log and the
// idempotency records. All balance mutations go through Lua scripts so the
// check-and-decrement is a single atomic step; nothing else in the codebase
// touches wallet balances directly.
type RedisService struct {
	client          *redis.Client
	ctx             context.Context
	startingBalance int64
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{
		client:          client,
		ctx:             ctx,
		startingBalance: cfg.StartingBalance,
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) GetWallet(userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	data, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		now := time.Now().Unix()
		wallet := &models.Wallet{
			UserID:    userID,
			Balance:   s.startingBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.SaveWallet(wallet); err != nil {
			return nil, fmt.Errorf("failed to create wallet: %v", err)
		}
		return wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %v", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}

	return &wallet, nil
}

func (s *RedisService) SaveWallet(wallet *models.Wallet) error {
	key := fmt.Sprintf(KeyWallet, wallet.UserID)

	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %v", err)
	}

	return s.client.Set(s.ctx, key, data, 0).Err()
}

// reserveScript is the single serialization point for debits: the balance
// check and the decrement happen in one script, so two concurrent wagers can
// never both pass the check against a balance that covers only one of them.
var reserveScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	if wallet.balance < amount then
		return redis.error_reply("insufficient balance")
	end

	wallet.balance = wallet.balance - amount
	wallet.total_wagered = wallet.total_wagered + amount
	wallet.updated_at = now

	redis.call("SET", key, cjson.encode(wallet))

	return wallet.balance
`)

// Reserve atomically checks balance >= amount and debits it. Returns the new
// balance, or ErrInsufficientFunds / ErrWalletNotFound.
func (s *RedisService) Reserve(ctx context.Context, userID int64, amount int64) (int64, error) {
	key := fmt.Sprintf(KeyWallet, userID)
	balance, err := reserveScript.Run(ctx, s.client, []string{key}, amount, time.Now().Unix()).Int64()
	if err != nil {
		return 0, translateWalletErr(err)
	}
	return balance, nil
}

var creditScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	wallet.balance = wallet.balance + amount
	wallet.total_won = wallet.total_won + amount
	wallet.updated_at = now

	redis.call("SET", key, cjson.encode(wallet))

	return wallet.balance
`)

// Credit atomically adds winnings to the balance and returns the new balance.
func (s *RedisService) Credit(ctx context.Context, userID int64, amount int64) (int64, error) {
	key := fmt.Sprintf(KeyWallet, userID)
	balance, err := creditScript.Run(ctx, s.client, []string{key}, amount, time.Now().Unix()).Int64()
	if err != nil {
		return 0, translateWalletErr(err)
	}
	return balance, nil
}

var refundScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	wallet.balance = wallet.balance + amount
	wallet.total_wagered = wallet.total_wagered - amount
	wallet.updated_at = now

	redis.call("SET", key, cjson.encode(wallet))

	return wallet.balance
`)

// Refund rolls back a reservation whose wager could not be settled. Unlike
// Credit it also reverses the total_wagered bump from Reserve.
func (s *RedisService) Refund(ctx context.Context, userID int64, amount int64) (int64, error) {
	key := fmt.Sprintf(KeyWallet, userID)
	balance, err := refundScript.Run(ctx, s.client, []string{key}, amount, time.Now().Unix()).Int64()
	if err != nil {
		return 0, translateWalletErr(err)
	}
	return balance, nil
}

func (s *RedisService) Balance(ctx context.Context, userID int64) (int64, error) {
	wallet, err := s.GetWallet(userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func translateWalletErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "insufficient balance"):
		return ErrInsufficientFunds
	case strings.Contains(msg, "wallet not found"):
		return ErrWalletNotFound
	default:
		return err
	}
}

// ClaimWager marks a wager id as in-flight for one account. Only the caller
// that wins the claim may reserve funds for this id; everyone else replays
// the stored result.
func (s *RedisService) ClaimWager(ctx context.Context, userID int64, wagerID string) (bool, error) {
	key := fmt.Sprintf(KeyWagerClaim, wagerID)
	return s.client.SetNX(ctx, key, userID, TTLWagerClaim).Result()
}

// ReleaseClaim frees a claimed wager id whose wager was rejected before any
// funds moved, so a retry does not have to wait out the claim TTL.
func (s *RedisService) ReleaseClaim(ctx context.Context, wagerID string) error {
	key := fmt.Sprintf(KeyWagerClaim, wagerID)
	return s.client.Del(ctx, key).Err()
}

// GetWagerResult returns the settled result for a wager id, or nil if the
// wager has not settled.
func (s *RedisService) GetWagerResult(ctx context.Context, wagerID string) (*models.WagerResult, error) {
	key := fmt.Sprintf(KeyWagerResult, wagerID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager result: %v", err)
	}

	var result models.WagerResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wager result: %v", err)
	}

	return &result, nil
}

// SaveWagerResult persists the result under the wager id. Written with NX so
// a result, once recorded, can never be overwritten.
func (s *RedisService) SaveWagerResult(ctx context.Context, result *models.WagerResult) error {
	key := fmt.Sprintf(KeyWagerResult, result.WagerID)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal wager result: %v", err)
	}

	return s.client.SetNX(ctx, key, data, 0).Err()
}

// AppendTransaction writes the audit record and indexes it per user. Records
// have no TTL; the per-user index keeps the most recent entries.
func (s *RedisService) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	txKey := fmt.Sprintf(KeyTransaction, tx.ID)

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %v", err)
	}

	if err := s.client.SetNX(ctx, txKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, tx.UserID)
	score := float64(tx.CreatedAt.UnixNano())

	if err := s.client.ZAdd(ctx, userTxKey, redis.Z{
		Score:  score,
		Member: tx.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to user transactions: %v", err)
	}

	s.client.ZRemRangeByRank(ctx, userTxKey, 0, int64(-MaxUserTransactions-1))

	return nil
}

func (s *RedisService) GetUserTransactions(userID int64, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, userID)

	txIDs, err := s.client.ZRevRange(s.ctx, userTxKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %v", err)
	}

	var transactions []*models.Transaction
	for _, txID := range txIDs {
		txKey := fmt.Sprintf(KeyTransaction, txID)

		data, err := s.client.Get(s.ctx, txKey).Result()
		if err != nil {
			continue
		}

		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}

		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

func (s *RedisService) CheckRateLimit(userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(s.ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(s.ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) DeleteWallet(userID int64) error {
	key := fmt.Sprintf(KeyWallet, userID)
	return s.client.Del(s.ctx, key).Err()
}

func (s *RedisService) DeleteWagerRecords(wagerID string) error {
	return s.client.Del(s.ctx,
		fmt.Sprintf(KeyWagerResult, wagerID),
		fmt.Sprintf(KeyWagerClaim, wagerID),
		fmt.Sprintf(KeyTransaction, wagerID),
	).Err()
}

func (s *RedisService) ClearRateLimit(userID int64, action string) error {
	key := fmt.Sprintf(KeyRateLimit, userID, action)
	return s.client.Del(s.ctx, key).Err()
}
