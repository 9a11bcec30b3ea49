package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
	"github.com/sasiyaluba/Jup-limit-order/internal/infra/solana"
	"github.com/sasiyaluba/Jup-limit-order/internal/secure"
	"github.com/sasiyaluba/Jup-limit-order/internal/storage"
)

// Registrar subscribes the price feed to a new mint.
type Registrar interface {
	Watch(mint string)
}

// Service is the order-facing facade: admission, cancellation, and status.
type Service struct {
	store     *storage.OrderStore
	codec     *secure.Codec
	registrar Registrar
	logger    *slog.Logger
}

// NewService creates the facade.
func NewService(store *storage.OrderStore, codec *secure.Codec, registrar Registrar, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		codec:     codec,
		registrar: registrar,
		logger:    logger,
	}
}

// PlaceOrderRequest carries the fields a client submits for a new order.
// Trigger is "below" (default) or "above". EncryptedKey is the AEAD-wrapped
// signing key, base64-encoded.
type PlaceOrderRequest struct {
	InputMint    string
	OutputMint   string
	TargetPrice  decimal.Decimal
	Trigger      string
	Amount       uint64
	SlippageBps  uint16
	TipLamports  uint64
	EncryptedKey string
}

// PlaceOrder validates and admits a new order, returning its id. The wrapped
// key is test-decrypted once so an unusable key is rejected here, before any
// price ever fires; the plaintext is wiped immediately and only the
// ciphertext is retained.
func (s *Service) PlaceOrder(_ context.Context, req PlaceOrderRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	trigger, err := domain.ParseTrigger(req.Trigger)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	raw, err := s.codec.Decrypt(req.EncryptedKey)
	if err != nil {
		return "", err
	}
	_, keyErr := solana.PrivateKeyFrom(raw)
	secure.Zero(raw)
	if keyErr != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrKeyDecrypt, keyErr)
	}

	order := domain.Order{
		ID:           uuid.NewString(),
		InputMint:    req.InputMint,
		OutputMint:   req.OutputMint,
		TargetPrice:  req.TargetPrice,
		Trigger:      trigger,
		Amount:       req.Amount,
		SlippageBps:  req.SlippageBps,
		TipLamports:  req.TipLamports,
		EncryptedKey: req.EncryptedKey,
		State:        domain.StatePending,
		CreatedAt:    time.Now(),
	}
	if err := s.store.Insert(order); err != nil {
		return "", err
	}
	s.registrar.Watch(order.InputMint)

	s.logger.Info("ORDER_PLACED",
		slog.String("order_id", order.ID),
		slog.String("input_mint", order.InputMint),
		slog.String("output_mint", order.OutputMint),
		slog.String("target", order.TargetPrice.String()),
		slog.String("direction", order.Trigger.String()),
		slog.Uint64("amount", order.Amount))
	return order.ID, nil
}

// CancelOrder withdraws an order that has not yet been handed to the chain.
// Returns true when this call performed the cancellation. An order already
// in flight (Submitted) reports false: past that point the outcome belongs
// to the cluster. Terminal orders report ErrAlreadyTerminal.
func (s *Service) CancelOrder(id string) (bool, error) {
	o, err := s.store.Get(id)
	if err != nil {
		return false, err
	}
	if o.State.Terminal() {
		return false, fmt.Errorf("%w: order is %s", domain.ErrAlreadyTerminal, o.State)
	}

	if s.store.CompareAndTransition(id, domain.StatePending, domain.StateCancelled) ||
		s.store.CompareAndTransition(id, domain.StateTriggered, domain.StateCancelled) {
		s.logger.Info("ORDER_CANCELLED", slog.String("order_id", id))
		return true, nil
	}

	// Both transitions lost a race. Re-read so a concurrent move to a
	// terminal state is reported the same way as one observed up front.
	o, err = s.store.Get(id)
	if err != nil {
		return false, err
	}
	if o.State.Terminal() {
		return false, fmt.Errorf("%w: order is %s", domain.ErrAlreadyTerminal, o.State)
	}
	return false, nil
}

// GetOrder returns a copy of the order's current state. The wrapped key is
// not part of the public view.
func (s *Service) GetOrder(id string) (domain.Order, error) {
	o, err := s.store.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	o.EncryptedKey = ""
	return o, nil
}

func validate(req PlaceOrderRequest) error {
	switch {
	case req.InputMint == "":
		return fmt.Errorf("%w: input mint is required", domain.ErrValidation)
	case req.OutputMint == "":
		return fmt.Errorf("%w: output mint is required", domain.ErrValidation)
	case req.InputMint == req.OutputMint:
		return fmt.Errorf("%w: input and output mints must differ", domain.ErrValidation)
	case req.TargetPrice.Sign() <= 0:
		return fmt.Errorf("%w: target price must be positive", domain.ErrValidation)
	case req.Amount == 0:
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	case req.SlippageBps > domain.MaxSlippageBps:
		return fmt.Errorf("%w: slippage %d exceeds %d bps", domain.ErrValidation, req.SlippageBps, domain.MaxSlippageBps)
	case req.EncryptedKey == "":
		return fmt.Errorf("%w: encrypted key is required", domain.ErrValidation)
	}
	return nil
}
