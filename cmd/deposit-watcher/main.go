package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Felista-Njeri/inva.ai/internal/config"
	"github.com/Felista-Njeri/inva.ai/internal/db"
	"github.com/Felista-Njeri/inva.ai/internal/events"
	"github.com/Felista-Njeri/inva.ai/internal/models"
	"github.com/Felista-Njeri/inva.ai/internal/repositories"
	"github.com/Felista-Njeri/inva.ai/internal/services"
	tonconn "github.com/Felista-Njeri/inva.ai/internal/ton"
	"github.com/Felista-Njeri/inva.ai/internal/treasury"
	"github.com/redis/go-redis/v9"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

const (
	redisCursorLT   = "deposit-watcher:cursor:lt"
	redisCursorHash = "deposit-watcher:cursor:hash"
	redisProcessed  = "deposit-watcher:tx:"
	processedTTL    = 7 * 24 * time.Hour
	pollInterval    = 5 * time.Second
	txBatchSize     = 100
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TONHotWalletAddress == "" {
		log.Fatal("TON_HOT_WALLET_ADDRESS is required")
	}

	hotWallet, err := address.ParseAddr(cfg.TONHotWalletAddress)
	if err != nil {
		log.Fatal("invalid TON_HOT_WALLET_ADDRESS", zap.String("addr", cfg.TONHotWalletAddress), zap.Error(err))
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	store := repositories.NewInvoiceRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	tonAPI, err := tonconn.ConnectAPI(ctx, cfg.TONNetwork, cfg.LiteServerHost, cfg.LiteServerPort, cfg.LiteServerKey, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	tr, err := treasury.NewTONTreasury(ctx, tonAPI, cfg.TONHotWalletSeed, log)
	if err != nil {
		log.Fatal("failed to init TON treasury", zap.Error(err))
	}

	registry := services.NewRegistry(cfg.AdminAddresses, cfg.AllowedTokens, cfg.FeeCollectorAddress, cfg.PlatformFeeBPS)
	ledger := services.NewLedgerService(store, tr, registry, publisher, log)

	log.Info("deposit watcher started",
		zap.String("hot_wallet", hotWallet.String()),
		zap.String("network", cfg.TONNetwork),
	)

	initCursor(ctx, tonAPI, hotWallet, rdb, log)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := pollAndProcess(ctx, tonAPI, hotWallet, ledger, publisher, rdb, log); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down deposit watcher")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// initCursor sets the initial cursor position on first run.
// On first run, it stores the current account LastTxLT so that only
// NEW transactions (arriving after startup) are processed.
func initCursor(ctx context.Context, api ton.APIClientWrapped, addr *address.Address, rdb *redis.Client, log *zap.Logger) {
	existing, _ := rdb.Get(ctx, redisCursorLT).Result()
	if existing != "" {
		log.Info("resuming from saved cursor", zap.String("lt", existing))
		return
	}

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		log.Warn("failed to get master block for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		log.Warn("failed to get account for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		log.Info("hot wallet not active yet, starting from LT=0")
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	saveCursor(ctx, rdb, account.LastTxLT, account.LastTxHash)
	log.Info("cursor initialized at current account state (skipping historical transactions)",
		zap.Uint64("lt", account.LastTxLT),
		zap.String("hash", hex.EncodeToString(account.LastTxHash)),
	)
}

func loadCursorLT(ctx context.Context, rdb *redis.Client) uint64 {
	val, err := rdb.Get(ctx, redisCursorLT).Result()
	if err != nil || val == "" {
		return 0
	}
	lt, _ := strconv.ParseUint(val, 10, 64)
	return lt
}

func saveCursor(ctx context.Context, rdb *redis.Client, lt uint64, hash []byte) {
	rdb.Set(ctx, redisCursorLT, strconv.FormatUint(lt, 10), 0)
	rdb.Set(ctx, redisCursorHash, hex.EncodeToString(hash), 0)
}

// pollAndProcess runs a single poll cycle:
// 1. Get the hot wallet's latest state
// 2. Fetch all transactions newer than the cursor
// 3. Record incoming TON deposits against their invoices
// 4. Update the cursor
func pollAndProcess(
	ctx context.Context,
	api ton.APIClientWrapped,
	addr *address.Address,
	ledger *services.LedgerService,
	publisher events.Publisher,
	rdb *redis.Client,
	log *zap.Logger,
) error {
	cursorLT := loadCursorLT(ctx, rdb)

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return fmt.Errorf("get master block: %w", err)
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		return nil
	}

	if account.LastTxLT <= cursorLT {
		return nil
	}

	newTxs, err := fetchNewTransactions(ctx, api, addr, account, cursorLT)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}

	if len(newTxs) > 0 {
		log.Info("found new transactions", zap.Int("count", len(newTxs)))
		for _, tx := range newTxs {
			if err := processIncomingTx(ctx, tx, ledger, publisher, rdb, log); err != nil {
				// Stop before this tx so the next cycle retries it.
				return fmt.Errorf("process tx lt=%d: %w", tx.LT, err)
			}
			saveCursor(ctx, rdb, tx.LT, tx.Hash)
		}
	}

	saveCursor(ctx, rdb, account.LastTxLT, account.LastTxHash)
	return nil
}

// fetchNewTransactions retrieves all transactions with LT > cursorLT.
// ListTransactions returns results oldest-first; we paginate backwards
// until we reach the cursor, then return in chronological order.
func fetchNewTransactions(
	ctx context.Context,
	api ton.APIClientWrapped,
	addr *address.Address,
	account *tlb.Account,
	cursorLT uint64,
) ([]*tlb.Transaction, error) {
	var allTxs []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := api.ListTransactions(ctx, addr, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			allTxs = append(allTxs, tx)
		}

		if reachedCursor || len(txs) < txBatchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(allTxs, func(i, j int) bool {
		return allTxs[i].LT < allTxs[j].LT
	})

	return allTxs, nil
}

// processIncomingTx handles a single incoming TON transfer: extracts the
// memo, matches it to an invoice, and records the payment through the
// ledger, which enforces payer identity, exact amount and invoice state.
// A non-nil return marks a transient failure that should be retried.
func processIncomingTx(
	ctx context.Context,
	tx *tlb.Transaction,
	ledger *services.LedgerService,
	publisher events.Publisher,
	rdb *redis.Client,
	log *zap.Logger,
) error {
	if tx.IO.In == nil {
		return nil
	}

	inMsg, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || inMsg == nil {
		return nil
	}

	if inMsg.Bounced {
		return nil
	}

	if inMsg.Amount.Nano().Sign() <= 0 {
		return nil
	}

	comment := extractComment(inMsg)
	if comment == "" {
		log.Debug("transfer without memo, skipping",
			zap.Uint64("lt", tx.LT),
			zap.String("from", inMsg.SrcAddr.String()),
			zap.String("amount", inMsg.Amount.String()),
		)
		return nil
	}

	// Idempotency: skip if already processed
	txKey := fmt.Sprintf("%s%d", redisProcessed, tx.LT)
	if rdb.Exists(ctx, txKey).Val() > 0 {
		return nil
	}

	invoiceID, ok := models.ParsePaymentMemo(strings.TrimSpace(comment))
	if !ok {
		log.Debug("memo does not reference an invoice", zap.String("memo", comment))
		rdb.Set(ctx, txKey, "no_invoice", processedTTL)
		return nil
	}

	fromAddr := inMsg.SrcAddr.String()
	amountNano := inMsg.Amount.Nano().Int64()

	log.Info("incoming deposit detected",
		zap.Uint64("lt", tx.LT),
		zap.Uint64("invoice_id", invoiceID),
		zap.String("from", fromAddr),
		zap.Int64("amount_nano", amountNano),
	)

	_, err := ledger.MakePayment(ctx, fromAddr, invoiceID, amountNano)
	switch {
	case err == nil:
		rdb.Set(ctx, txKey, "paid:"+strconv.FormatUint(invoiceID, 10), processedTTL)
		_ = publisher.Publish(ctx, events.StreamInvoices, events.Event{
			Type: events.EventDepositReceived,
			Payload: map[string]any{
				"invoice_id":  invoiceID,
				"tx_lt":       tx.LT,
				"amount_nano": amountNano,
				"from":        fromAddr,
			},
		})
		log.Info("deposit recorded",
			zap.Uint64("invoice_id", invoiceID),
			zap.Uint64("tx_lt", tx.LT),
			zap.Int64("amount_nano", amountNano),
			zap.String("from", fromAddr),
		)
		return nil
	case errors.Is(err, models.ErrValidation):
		// Wrong amount or wrong sender. The transfer stays on chain but
		// cannot fund this invoice; an operator has to refund it manually.
		log.Warn("deposit rejected",
			zap.Uint64("invoice_id", invoiceID),
			zap.Int64("amount_nano", amountNano),
			zap.String("from", fromAddr),
			zap.Error(err),
		)
		rdb.Set(ctx, txKey, "rejected", processedTTL)
		return nil
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrNotFound):
		log.Warn("deposit does not match a payable invoice",
			zap.Uint64("invoice_id", invoiceID),
			zap.Error(err),
		)
		rdb.Set(ctx, txKey, "skip", processedTTL)
		return nil
	default:
		log.Error("failed to record deposit",
			zap.Uint64("invoice_id", invoiceID),
			zap.Error(err),
		)
		return err
	}
}

// extractComment parses a text comment from an InternalMessage body.
// TON text comments have opcode 0x00000000 followed by UTF-8 text.
func extractComment(inMsg *tlb.InternalMessage) string {
	body := inMsg.Body
	if body == nil {
		return ""
	}

	slice := body.BeginParse()
	if slice.BitsLeft() < 32 {
		return ""
	}

	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}

	remaining := slice.BitsLeft()
	if remaining < 8 {
		return ""
	}

	data, err := slice.LoadSlice(remaining)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
