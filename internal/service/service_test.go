package service

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
	"github.com/sasiyaluba/Jup-limit-order/internal/secure"
	"github.com/sasiyaluba/Jup-limit-order/internal/storage"
)

const (
	testInputMint  = "So11111111111111111111111111111111111111112"
	testOutputMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type fakeRegistrar struct {
	mu    sync.Mutex
	mints []string
}

func (r *fakeRegistrar) Watch(mint string) {
	r.mu.Lock()
	r.mints = append(r.mints, mint)
	r.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *storage.OrderStore, *secure.Codec, *fakeRegistrar) {
	t.Helper()
	codec, err := secure.NewCodec(bytes.Repeat([]byte{0x42}, secure.KeySize))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	store := storage.NewOrderStore(nil)
	registrar := &fakeRegistrar{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, codec, registrar, logger), store, codec, registrar
}

func validRequest(t *testing.T, codec *secure.Codec) PlaceOrderRequest {
	t.Helper()
	enc, err := codec.Encrypt(bytes.Repeat([]byte{7}, ed25519.SeedSize))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return PlaceOrderRequest{
		InputMint:    testInputMint,
		OutputMint:   testOutputMint,
		TargetPrice:  decimal.RequireFromString("0.73"),
		Amount:       1_000_000,
		SlippageBps:  50,
		EncryptedKey: enc,
	}
}

func TestPlaceOrder(t *testing.T) {
	svc, store, codec, registrar := newTestService(t)

	id, err := svc.PlaceOrder(context.Background(), validRequest(t, codec))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if id == "" {
		t.Fatal("empty order id")
	}

	o, err := store.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.State != domain.StatePending {
		t.Fatalf("expected PENDING, got %s", o.State)
	}
	if o.Trigger != domain.TriggerBelow {
		t.Fatalf("expected default below trigger, got %s", o.Trigger)
	}

	registrar.mu.Lock()
	defer registrar.mu.Unlock()
	if len(registrar.mints) != 1 || registrar.mints[0] != testInputMint {
		t.Fatalf("feed not subscribed: %v", registrar.mints)
	}
}

func TestPlaceOrderRejectsBadKey(t *testing.T) {
	svc, store, codec, _ := newTestService(t)

	// Ciphertext that never came from our key.
	req := validRequest(t, codec)
	req.EncryptedKey = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	_, err := svc.PlaceOrder(context.Background(), req)
	if !errors.Is(err, domain.ErrKeyDecrypt) {
		t.Fatalf("expected key decrypt error, got %v", err)
	}
	if got := store.ListActive(); len(got) != 0 {
		t.Fatalf("order admitted with unusable key: %v", got)
	}
}

func TestPlaceOrderRejectsWrongKeySize(t *testing.T) {
	svc, _, codec, _ := newTestService(t)

	// Decryptable, but not ed25519 key material.
	enc, err := codec.Encrypt([]byte("short"))
	if err != nil {
		t.Fatal(err)
	}
	req := validRequest(t, codec)
	req.EncryptedKey = enc

	if _, err := svc.PlaceOrder(context.Background(), req); !errors.Is(err, domain.ErrKeyDecrypt) {
		t.Fatalf("expected key decrypt error, got %v", err)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, _, codec, _ := newTestService(t)

	cases := []struct {
		name   string
		mutate func(*PlaceOrderRequest)
	}{
		{"missing input mint", func(r *PlaceOrderRequest) { r.InputMint = "" }},
		{"missing output mint", func(r *PlaceOrderRequest) { r.OutputMint = "" }},
		{"same mints", func(r *PlaceOrderRequest) { r.OutputMint = r.InputMint }},
		{"zero target", func(r *PlaceOrderRequest) { r.TargetPrice = decimal.Zero }},
		{"negative target", func(r *PlaceOrderRequest) { r.TargetPrice = decimal.RequireFromString("-1") }},
		{"zero amount", func(r *PlaceOrderRequest) { r.Amount = 0 }},
		{"slippage too high", func(r *PlaceOrderRequest) { r.SlippageBps = 10001 }},
		{"missing key", func(r *PlaceOrderRequest) { r.EncryptedKey = "" }},
		{"bad trigger", func(r *PlaceOrderRequest) { r.Trigger = "sideways" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest(t, codec)
			tc.mutate(&req)
			if _, err := svc.PlaceOrder(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	svc, store, codec, _ := newTestService(t)

	id, err := svc.PlaceOrder(context.Background(), validRequest(t, codec))
	if err != nil {
		t.Fatal(err)
	}

	ok, err := svc.CancelOrder(id)
	if err != nil || !ok {
		t.Fatalf("cancel pending: ok=%v err=%v", ok, err)
	}
	o, _ := store.Get(id)
	if o.State != domain.StateCancelled {
		t.Fatalf("expected CANCELLED, got %s", o.State)
	}

	// Cancelling again: already terminal.
	if _, err := svc.CancelOrder(id); !errors.Is(err, domain.ErrAlreadyTerminal) {
		t.Fatalf("expected already-terminal error, got %v", err)
	}
}

func TestCancelTriggeredOrder(t *testing.T) {
	svc, store, codec, _ := newTestService(t)

	id, err := svc.PlaceOrder(context.Background(), validRequest(t, codec))
	if err != nil {
		t.Fatal(err)
	}
	store.CompareAndTransition(id, domain.StatePending, domain.StateTriggered)

	ok, err := svc.CancelOrder(id)
	if err != nil || !ok {
		t.Fatalf("cancel triggered: ok=%v err=%v", ok, err)
	}
}

func TestCancelSubmittedOrder(t *testing.T) {
	svc, store, codec, _ := newTestService(t)

	id, err := svc.PlaceOrder(context.Background(), validRequest(t, codec))
	if err != nil {
		t.Fatal(err)
	}
	store.CompareAndTransition(id, domain.StatePending, domain.StateTriggered)
	store.CompareAndTransition(id, domain.StateTriggered, domain.StateSubmitted)

	// In flight: cannot cancel, but not an error either.
	ok, err := svc.CancelOrder(id)
	if err != nil {
		t.Fatalf("cancel submitted: %v", err)
	}
	if ok {
		t.Fatal("cancelled an order already handed to the chain")
	}
	o, _ := store.Get(id)
	if o.State != domain.StateSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", o.State)
	}
}

func TestCancelFilledOrder(t *testing.T) {
	svc, store, codec, _ := newTestService(t)

	id, err := svc.PlaceOrder(context.Background(), validRequest(t, codec))
	if err != nil {
		t.Fatal(err)
	}
	store.CompareAndTransition(id, domain.StatePending, domain.StateTriggered)
	store.CompareAndTransition(id, domain.StateTriggered, domain.StateSubmitted)
	store.CompareAndTransition(id, domain.StateSubmitted, domain.StateFilled)

	ok, err := svc.CancelOrder(id)
	if ok || !errors.Is(err, domain.ErrAlreadyTerminal) {
		t.Fatalf("cancel filled: ok=%v err=%v", ok, err)
	}
	o, _ := store.Get(id)
	if o.State != domain.StateFilled {
		t.Fatalf("filled order mutated: %s", o.State)
	}
}

func TestCancelRacesConcurrentTransition(t *testing.T) {
	svc, store, codec, _ := newTestService(t)
	req := validRequest(t, codec)

	// A cancel that loses both state swaps to a concurrent cancellation
	// must still report the terminal outcome, never a bare false.
	for i := 0; i < 200; i++ {
		id, err := svc.PlaceOrder(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}

		var (
			wg    sync.WaitGroup
			ok    bool
			cErr  error
			raced bool
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			ok, cErr = svc.CancelOrder(id)
		}()
		go func() {
			defer wg.Done()
			store.CompareAndTransition(id, domain.StatePending, domain.StateTriggered)
			raced = store.CompareAndTransition(id, domain.StateTriggered, domain.StateCancelled)
		}()
		wg.Wait()

		switch {
		case ok:
			if cErr != nil {
				t.Fatalf("round %d: cancelled with error %v", i, cErr)
			}
			if raced {
				t.Fatalf("round %d: both paths claim the cancellation", i)
			}
		case errors.Is(cErr, domain.ErrAlreadyTerminal):
			if !raced {
				t.Fatalf("round %d: terminal reported but nothing raced", i)
			}
		default:
			t.Fatalf("round %d: ok=%v err=%v with no submission in play", i, ok, cErr)
		}

		o, _ := store.Get(id)
		if o.State != domain.StateCancelled {
			t.Fatalf("round %d: expected CANCELLED, got %s", i, o.State)
		}
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.CancelOrder("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetOrderHidesKey(t *testing.T) {
	svc, _, codec, _ := newTestService(t)

	id, err := svc.PlaceOrder(context.Background(), validRequest(t, codec))
	if err != nil {
		t.Fatal(err)
	}

	o, err := svc.GetOrder(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.EncryptedKey != "" {
		t.Fatal("status view leaks wrapped key material")
	}
	if o.ID != id || o.State != domain.StatePending {
		t.Fatalf("unexpected order view %+v", o)
	}

	if _, err := svc.GetOrder("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
