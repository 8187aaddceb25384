package pool

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var testPool = common.HexToHash("0xabc1")

func TestActivateToleranceBounds(t *testing.T) {
	cases := []struct {
		name      string
		tolerance uint32
		wantErr   error
	}{
		{"zero rejected", 0, ErrInvalidTolerance},
		{"one accepted", 1, nil},
		{"full range accepted", 10000, nil},
		{"above range rejected", 10001, ErrInvalidTolerance},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			err := reg.Activate(testPool, 2, tc.tolerance)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Activate(tolerance=%d) error = %v, want %v", tc.tolerance, err, tc.wantErr)
			}
			if _, ok := reg.Get(testPool); ok != (tc.wantErr == nil) {
				t.Fatalf("registered = %v after error %v", ok, err)
			}
		})
	}
}

func TestActivateImmutable(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Activate(testPool, 2, 100); err != nil {
		t.Fatalf("first Activate: %v", err)
	}

	err := reg.Activate(testPool, 50, 500)
	if !errors.Is(err, ErrAlreadyActivated) {
		t.Fatalf("second Activate error = %v, want ErrAlreadyActivated", err)
	}

	cfg, err := reg.Require(testPool)
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if cfg.PremiumRateBps != 2 || cfg.ILToleranceBps != 100 {
		t.Fatalf("config overwritten: %+v", cfg)
	}
}

func TestRequireUnknownPool(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Require(testPool); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Require on unknown pool: %v, want ErrNotRegistered", err)
	}
}

func TestDeactivateGatesRequire(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Activate(testPool, 2, 100); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	reg.Deactivate(testPool)

	if _, err := reg.Require(testPool); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Require after Deactivate: %v, want ErrNotRegistered", err)
	}

	// The config record survives deactivation, only the gate flips.
	cfg, ok := reg.Get(testPool)
	if !ok {
		t.Fatal("config erased by Deactivate")
	}
	if cfg.Active {
		t.Fatal("still active after Deactivate")
	}
	if cfg.ILToleranceBps != 100 {
		t.Fatalf("tolerance changed: %d", cfg.ILToleranceBps)
	}
}

func TestDeactivateUnknownPool(t *testing.T) {
	reg := NewRegistry()
	reg.Deactivate(testPool)

	if _, ok := reg.Get(testPool); ok {
		t.Fatal("Deactivate created a record")
	}
}

func TestDeactivatedPoolCannotReactivate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Activate(testPool, 2, 100); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	reg.Deactivate(testPool)

	if err := reg.Activate(testPool, 2, 100); !errors.Is(err, ErrAlreadyActivated) {
		t.Fatalf("re-activation error = %v, want ErrAlreadyActivated", err)
	}
}
