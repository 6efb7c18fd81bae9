package treasury

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Felista-Njeri/inva.ai/internal/models"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"
)

// TONTreasury holds custody in a hot wallet on the TON network. Outbound
// payouts are sent from the hot wallet; inbound native deposits are not
// pulled here; they arrive as transfers to the hot wallet and are observed
// by the deposit watcher, which records them through the ledger.
type TONTreasury struct {
	api    ton.APIClientWrapped
	wallet *wallet.Wallet
	log    *zap.Logger
}

func NewTONTreasury(ctx context.Context, api ton.APIClientWrapped, seedWords string, log *zap.Logger) (*TONTreasury, error) {
	seed := strings.Fields(seedWords)
	if len(seed) == 0 {
		return nil, fmt.Errorf("treasury: empty hot wallet seed")
	}

	w, err := wallet.FromSeed(api, seed, wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("treasury: init hot wallet: %w", err)
	}

	log.Info("hot wallet ready", zap.String("address", w.WalletAddress().String()))
	return &TONTreasury{api: api, wallet: w, log: log}, nil
}

func (t *TONTreasury) Address() string {
	return t.wallet.WalletAddress().String()
}

// TransferIn is not a pull on TON: native deposits are value-carrying
// transfers observed on-chain by the deposit watcher.
func (t *TONTreasury) TransferIn(_ context.Context, token, from string, amount int64) error {
	return fmt.Errorf("treasury: %s deposits are observed on-chain, not pulled (from=%s amount=%d)", token, from, amount)
}

func (t *TONTreasury) TransferOut(ctx context.Context, token, to string, amount int64) error {
	if token != models.NativeToken {
		return fmt.Errorf("treasury: unsupported token %q", token)
	}

	dst, err := address.ParseAddr(to)
	if err != nil {
		return fmt.Errorf("treasury: parse destination %q: %w", to, err)
	}

	coins := tlb.FromNanoTON(big.NewInt(amount))
	if err := t.wallet.Transfer(ctx, dst, coins, ""); err != nil {
		return fmt.Errorf("treasury: send %s to %s: %w", coins.String(), to, err)
	}

	t.log.Info("payout sent",
		zap.String("to", to),
		zap.Int64("amount_nano", amount),
	)
	return nil
}

func (t *TONTreasury) Balance(ctx context.Context, token string) (int64, error) {
	if token != models.NativeToken {
		return 0, fmt.Errorf("treasury: unsupported token %q", token)
	}

	block, err := t.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("treasury: get master block: %w", err)
	}
	account, err := t.api.GetAccount(ctx, block, t.wallet.WalletAddress())
	if err != nil {
		return 0, fmt.Errorf("treasury: get account: %w", err)
	}
	if account == nil || !account.IsActive {
		return 0, nil
	}
	return account.State.Balance.Nano().Int64(), nil
}
