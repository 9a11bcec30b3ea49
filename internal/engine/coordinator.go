package engine

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"time"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
	"github.com/sasiyaluba/Jup-limit-order/internal/infra/solana"
	"github.com/sasiyaluba/Jup-limit-order/internal/secure"
	"github.com/sasiyaluba/Jup-limit-order/internal/storage"
	"github.com/sasiyaluba/Jup-limit-order/pkg/safe"
)

// Router quotes swap routes and builds serialized swap transactions.
type Router interface {
	Quote(ctx context.Context, q domain.RouteQuery) (domain.Route, error)
	BuildSwap(ctx context.Context, route domain.Route, p domain.SwapParams) ([]byte, error)
}

// Submitter sends single transactions through an RPC node.
type Submitter interface {
	LatestBlockhash(ctx context.Context) (string, error)
	Send(ctx context.Context, tx []byte) (string, error)
	WaitConfirmed(ctx context.Context, signature string) error
}

// BundleSender submits tip-carrying transaction bundles.
type BundleSender interface {
	TipAccount() string
	SendBundle(ctx context.Context, txs [][]byte) (string, error)
	WaitLanded(ctx context.Context, bundleID string) error
}

// Coordinator drives a triggered order through quoting, signing, and
// submission. Key material exists only inside Execute and is wiped on every
// exit path.
type Coordinator struct {
	store   *storage.OrderStore
	codec   *secure.Codec
	router  Router
	rpc     Submitter
	bundles BundleSender
	logger  *slog.Logger

	quoteTimeout  time.Duration
	submitTimeout time.Duration
	feeAccount    string
	feeBps        uint16
}

// CoordinatorConfig wires the coordinator's collaborators and limits.
type CoordinatorConfig struct {
	Store         *storage.OrderStore
	Codec         *secure.Codec
	Router        Router
	RPC           Submitter
	Bundles       BundleSender
	Logger        *slog.Logger
	QuoteTimeout  time.Duration
	SubmitTimeout time.Duration
	FeeAccount    string
	FeeBps        uint16
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		store:         cfg.Store,
		codec:         cfg.Codec,
		router:        cfg.Router,
		rpc:           cfg.RPC,
		bundles:       cfg.Bundles,
		logger:        cfg.Logger,
		quoteTimeout:  cfg.QuoteTimeout,
		submitTimeout: cfg.SubmitTimeout,
		feeAccount:    cfg.FeeAccount,
		feeBps:        cfg.FeeBps,
	}
}

// Execute runs the submission pipeline for one triggered order. The
// Triggered to Submitted transition is the entry gate: if it fails the order
// was cancelled or another execution already claimed it, and Execute backs
// off without side effects.
func (c *Coordinator) Execute(ctx context.Context, orderID string) {
	order, err := c.store.Get(orderID)
	if err != nil {
		c.logger.Error("EXECUTE_LOOKUP_FAILED", slog.String("order_id", orderID), slog.Any("err", err))
		return
	}
	if !c.store.CompareAndTransition(orderID, domain.StateTriggered, domain.StateSubmitted) {
		return
	}

	keyRaw, err := c.codec.Decrypt(order.EncryptedKey)
	if err != nil {
		c.fail(orderID, "key decryption failed", err)
		return
	}
	defer secure.Zero(keyRaw)

	signKey, err := solana.PrivateKeyFrom(keyRaw)
	if err != nil {
		c.fail(orderID, "invalid signing key", err)
		return
	}
	defer secure.Zero(signKey)

	quoteCtx, cancel := context.WithTimeout(ctx, c.quoteTimeout)
	route, err := c.router.Quote(quoteCtx, domain.RouteQuery{
		InputMint:      order.InputMint,
		OutputMint:     order.OutputMint,
		Amount:         order.Amount,
		SlippageBps:    order.SlippageBps,
		PlatformFeeBps: c.feeBps,
	})
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrNoRoute) {
			c.fail(orderID, "no route", err)
		} else {
			c.fail(orderID, "quote failed", err)
		}
		return
	}

	if c.feeBps > 0 {
		_, cut := safe.SplitBps(route.OutAmount, c.feeBps)
		c.logger.Info("PLATFORM_FEE",
			slog.String("order_id", orderID),
			slog.Uint64("out_amount", route.OutAmount),
			slog.Uint64("fee_estimate", cut))
	}

	// The tip is conveyed exactly once. On the bundle path it rides as its
	// own transfer transaction, so the swap itself must not embed a second
	// one; without a bundle client the venue embeds it instead.
	useBundle := order.TipLamports > 0 && c.bundles != nil
	swapTip := order.TipLamports
	if useBundle {
		swapTip = 0
	}

	buildCtx, cancel := context.WithTimeout(ctx, c.quoteTimeout)
	tx, err := c.router.BuildSwap(buildCtx, route, domain.SwapParams{
		UserPublicKey: solana.PublicKeyBase58(signKey),
		FeeAccount:    c.feeAccount,
		TipLamports:   swapTip,
	})
	cancel()
	if err != nil {
		c.fail(orderID, "swap build failed", err)
		return
	}

	signed, err := solana.SignTransaction(tx, signKey)
	if err != nil {
		c.fail(orderID, "signing failed", err)
		return
	}

	submitCtx, cancelSubmit := context.WithTimeout(ctx, c.submitTimeout)
	defer cancelSubmit()

	if useBundle {
		err = c.submitBundle(submitCtx, orderID, signed, signKey, order.TipLamports)
	} else {
		err = c.submitDirect(submitCtx, orderID, signed)
	}
	if err != nil {
		c.fail(orderID, "submission failed", err)
		return
	}

	c.store.CompareAndTransition(orderID, domain.StateSubmitted, domain.StateFilled)
	c.logger.Info("ORDER_FILLED",
		slog.String("order_id", orderID),
		slog.Uint64("in_amount", route.InAmount),
		slog.Uint64("out_amount", route.OutAmount))
}

func (c *Coordinator) submitDirect(ctx context.Context, orderID string, signed []byte) error {
	signature, err := c.rpc.Send(ctx, signed)
	if err != nil {
		return err
	}
	c.logger.Info("TX_SUBMITTED",
		slog.String("order_id", orderID),
		slog.String("signature", signature))
	return c.rpc.WaitConfirmed(ctx, signature)
}

// submitBundle pairs the signed swap with a tip transfer so the bundle pays
// for its own inclusion.
func (c *Coordinator) submitBundle(ctx context.Context, orderID string, signed []byte, signKey ed25519.PrivateKey, tip uint64) error {
	blockhash, err := c.rpc.LatestBlockhash(ctx)
	if err != nil {
		return err
	}
	tipTx, err := solana.NewTransferTx(signKey, c.bundles.TipAccount(), tip, blockhash)
	if err != nil {
		return err
	}

	bundleID, err := c.bundles.SendBundle(ctx, [][]byte{signed, tipTx})
	if err != nil {
		return err
	}
	c.logger.Info("BUNDLE_SUBMITTED",
		slog.String("order_id", orderID),
		slog.String("bundle_id", bundleID),
		slog.Uint64("tip_lamports", tip))
	return c.bundles.WaitLanded(ctx, bundleID)
}

func (c *Coordinator) fail(orderID, reason string, err error) {
	c.store.FailFrom(orderID, domain.StateSubmitted, reason)
	c.logger.Warn("ORDER_FAILED",
		slog.String("order_id", orderID),
		slog.String("reason", reason),
		slog.Any("err", err))
}
