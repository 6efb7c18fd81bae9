package treasury

import (
	"context"
	"fmt"
	"sync"
)

// Bank is an in-process Treasury keeping per-account token balances. It backs
// development runs and tests; custody is the reserved "@ledger" account.
type Bank struct {
	mu       sync.Mutex
	balances map[string]map[string]int64 // token -> account -> balance
}

const custodyAccount = "@ledger"

func NewBank() *Bank {
	return &Bank{balances: make(map[string]map[string]int64)}
}

// Mint credits an account out of thin air. Test and seed helper.
func (b *Bank) Mint(token, account string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(token, account, amount)
}

// BalanceOf reports an arbitrary account's balance for a token.
func (b *Bank) BalanceOf(token, account string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[token][account]
}

func (b *Bank) TransferIn(_ context.Context, token, from string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("treasury: non-positive transfer amount %d", amount)
	}
	if b.balances[token][from] < amount {
		return fmt.Errorf("treasury: insufficient %s balance for %s", token, from)
	}
	b.balances[token][from] -= amount
	b.credit(token, custodyAccount, amount)
	return nil
}

func (b *Bank) TransferOut(_ context.Context, token, to string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("treasury: non-positive transfer amount %d", amount)
	}
	if b.balances[token][custodyAccount] < amount {
		return fmt.Errorf("treasury: custody short of %s", token)
	}
	b.balances[token][custodyAccount] -= amount
	b.credit(token, to, amount)
	return nil
}

func (b *Bank) Balance(_ context.Context, token string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[token][custodyAccount], nil
}

func (b *Bank) credit(token, account string, amount int64) {
	if b.balances[token] == nil {
		b.balances[token] = make(map[string]int64)
	}
	b.balances[token][account] += amount
}
