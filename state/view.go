package state

import (
	"math/big"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// weiExp scales wei to ether.
const weiExp = -18

// View is the JSON shape handed to UI subscribers.
type View struct {
	Jackpot          string                 `json:"jackpot"`
	JackpotEther     decimal.Decimal        `json:"jackpot_ether"`
	UserBalance      string                 `json:"user_balance"`
	UserBalanceEther decimal.Decimal        `json:"user_balance_ether"`
	UserAddress      string                 `json:"user_address"`
	EthereumDetected bool                   `json:"ethereum_detected"`
	Bets             [][]string             `json:"bets"`
	Errors           map[string]interface{} `json:"errors"`
	Loading          bool                   `json:"loading"`
	Buying           bool                   `json:"buying"`
}

// ToEther converts a wei amount to ether.
func ToEther(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(valueOrZero(wei), weiExp)
}

// View renders the snapshot for JSON consumers.
func (s Snapshot) View() View {
	v := View{
		Jackpot:          valueOrZero(s.Jackpot).String(),
		JackpotEther:     ToEther(s.Jackpot),
		UserBalance:      valueOrZero(s.UserBalance).String(),
		UserBalanceEther: ToEther(s.UserBalance),
		UserAddress:      s.UserAddress,
		EthereumDetected: s.EthereumDetected,
		Bets: lo.Map(s.Bets, func(bet []*big.Int, _ int) []string {
			return lo.Map(bet, func(n *big.Int, _ int) string {
				return valueOrZero(n).String()
			})
		}),
		Loading: s.Loading,
		Buying:  s.Buying,
	}
	if s.Err != nil {
		v.Errors = s.Err.Response()
	}
	return v
}
