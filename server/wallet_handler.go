package server

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/middleware"
	"github.com/donnyesq/gamble/state"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// LotteryClient is the part of lottery.Client the HTTP layer drives.
type LotteryClient interface {
	Snapshot() state.Snapshot
	Subscribe(fn state.Observer) *state.Subscription
	Buy(ctx context.Context, numbers []*big.Int) error
	ConnectWallet(ctx context.Context) error
	OnboardingURL() string
}

// WalletHandler turns user actions into client calls.
type WalletHandler struct {
	client LotteryClient
	logger zerolog.Logger
}

// NewWalletHandler creates a wallet handler.
func NewWalletHandler(client LotteryClient, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		client: client,
		logger: logger.With().Str("handler", "wallet").Logger(),
	}
}

// PlaceBetRequest is the body of POST /api/bets. Numbers are decimal strings
// so uint256 values survive JSON.
type PlaceBetRequest struct {
	Numbers []string `json:"numbers" binding:"required,min=1"`
}

// PlaceBet marks a purchase in flight and submits it. The response carries
// the snapshot after the bet settled.
// Route: POST /api/bets
func (h *WalletHandler) PlaceBet(c *gin.Context) {
	var req PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}

	numbers, err := parseNumbers(req.Numbers)
	if err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid bet numbers"))
		return
	}

	// A bet runs to its receipt even if the browser goes away
	if err := h.client.Buy(context.WithoutCancel(c.Request.Context()), numbers); err != nil {
		middleware.Logger(c).Warn().Err(err).Msg("Bet failed")
		HandleAppError(c, err)
		return
	}

	Success(c, http.StatusCreated, h.client.Snapshot().View())
}

// Connect prompts the wallet for account access. The prompt stays open after
// the request is gone.
// Route: POST /api/connect
func (h *WalletHandler) Connect(c *gin.Context) {
	if err := h.client.ConnectWallet(context.WithoutCancel(c.Request.Context())); err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, h.client.Snapshot().View())
}

// Onboarding sends users without a wallet to the install page.
// Route: GET /onboarding
func (h *WalletHandler) Onboarding(c *gin.Context) {
	c.Redirect(http.StatusFound, h.client.OnboardingURL())
}

func parseNumbers(raw []string) ([]*big.Int, error) {
	var bad []string
	numbers := lo.Map(raw, func(s string, _ int) *big.Int {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok || n.Sign() <= 0 {
			bad = append(bad, s)
		}
		return n
	})
	if len(bad) > 0 {
		return nil, fmt.Errorf("not positive integers: %v", bad)
	}
	return numbers, nil
}
