package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"minigames-backend/internal/models"
	"minigames-backend/internal/services"
)

// Store is the slice of the storage layer the handlers need directly; the
// money paths all go through the engine.
type Store interface {
	GetWallet(userID int64) (*models.Wallet, error)
	GetUserTransactions(userID int64, limit int64) ([]*models.Transaction, error)
	CheckRateLimit(userID int64, action string, limit int, window time.Duration) (bool, error)
}

type GameHandler struct {
	engine *services.WagerEngine
	store  Store
}

func NewGameHandler(engine *services.WagerEngine, store Store) *GameHandler {
	return &GameHandler{
		engine: engine,
		store:  store,
	}
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	balance, err := h.engine.Balance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get balance",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": balance,
	})
}

func (h *GameHandler) ListGames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"games":   h.engine.Games(),
	})
}

func (h *GameHandler) RollDice(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.DiceRollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if !h.allowWager(c, userID) {
		return
	}

	result, err := h.engine.RollDice(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeWagerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"player_won": result.PlayerWon,
		"dice1":      result.Outcome.Dice1,
		"dice2":      result.Outcome.Dice2,
		"total":      result.Outcome.Total,
		"multiplier": result.Multiplier,
		"is_double":  result.Outcome.IsDouble,
		"bet_amount": result.BetAmount,
		"winnings":   result.Winnings,
		"message":    diceMessage(result),
	})
}

func (h *GameHandler) DicePayoutTable(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"payout_table": h.engine.PayoutTable().Entries(),
		"special_rules": []models.SpecialRule{
			{
				Rule:        "double_bonus",
				Description: "When both dice show the same value the base multiplier is scaled by 1.5x. Fractional winnings round half down.",
				Example:     "A 3+3 roll: total 6 pays 6x base, the double makes it 9x.",
			},
			{
				Rule:        "seven_pays_nothing",
				Description: "A total of 7 is the most likely roll and carries no payout.",
				Example:     "Rolling 3+4 loses the bet.",
			},
		},
	})
}

func (h *GameHandler) PlayCups(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.CupsPlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if !h.allowWager(c, userID) {
		return
	}

	result, err := h.engine.PlayCups(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeWagerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"player_won":  result.PlayerWon,
		"correct_cup": result.Outcome.CorrectCup,
		"bet_amount":  result.BetAmount,
		"multiplier":  result.Multiplier,
		"winnings":    result.Winnings,
		"message":     cupsMessage(result),
	})
}

func (h *GameHandler) CupsInfo(c *gin.Context) {
	game, _ := h.engine.Game(models.GameCups)

	c.JSON(http.StatusOK, gin.H{
		"name":        game.Name,
		"description": game.Description,
		"rules":       "Three cups, one ball. Pick a cup (0-2); a correct pick pays 3x your bet.",
		"min_bet":     game.MinBet,
		"max_bet":     game.MaxBet,
		"multiplier":  h.engine.PayoutTable().CupsMultiplier(),
	})
}

func (h *GameHandler) GetHistory(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	transactions, err := h.store.GetUserTransactions(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get wager history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"wagers":  transactions,
		"count":   len(transactions),
	})
}

// allowWager enforces the per-user wager rate limit. Returns false after
// writing the response.
func (h *GameHandler) allowWager(c *gin.Context, userID int64) bool {
	allowed, err := h.store.CheckRateLimit(userID, "wager", services.DefaultRateLimitWagers, time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
		return false
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many wagers. Please wait."})
		return false
	}
	return true
}

// writeWagerError maps engine errors onto the documented bodies. Business
// rejections are HTTP 200 with success:false; only transport and server
// faults use 4xx/5xx.
func (h *GameHandler) writeWagerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidBet):
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   "invalid_bet",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrInsufficientFunds):
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   "insufficient_funds",
			"message": "You don't have enough points for this bet.",
		})
	case errors.Is(err, services.ErrWagerInProgress):
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   "wager_in_progress",
			"message": "This wager is still being settled. Retry with the same wager_id.",
		})
	case errors.Is(err, services.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "account_not_found",
			"message": "No wallet exists for this account.",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal_error",
			"message": "Failed to place wager",
		})
	}
}

func diceMessage(result *models.WagerResult) string {
	o := result.Outcome
	if !result.PlayerWon {
		return fmt.Sprintf("You rolled %d + %d = %d. Better luck next time!", o.Dice1, o.Dice2, o.Total)
	}
	if o.IsDouble {
		return fmt.Sprintf("Double %ds! You rolled %d and won %d points at %.1fx!",
			o.Dice1, o.Total, result.Winnings, result.Multiplier)
	}
	return fmt.Sprintf("You rolled %d + %d = %d and won %d points at %.0fx!",
		o.Dice1, o.Dice2, o.Total, result.Winnings, result.Multiplier)
}

func cupsMessage(result *models.WagerResult) string {
	o := result.Outcome
	if result.PlayerWon {
		return fmt.Sprintf("Cup %d was right! You won %d points!", o.CorrectCup, result.Winnings)
	}
	return fmt.Sprintf("The ball was under cup %d. Better luck next time!", o.CorrectCup)
}
