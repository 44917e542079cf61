package position

import (
	"context"
	"errors"
	"testing"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/testutil"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
)

// scriptedCollateral records step order and fails at FailStep.
type scriptedCollateral struct {
	Steps    []string
	FailStep string
}

func (s *scriptedCollateral) step(name string) error {
	s.Steps = append(s.Steps, name)
	if name == s.FailStep {
		return errors.New("tx reverted")
	}
	return nil
}

func (s *scriptedCollateral) EnsureAccount(ctx context.Context) (*types.CollateralAccount, error) {
	if err := s.step("ensure-account"); err != nil {
		return nil, err
	}
	return &types.CollateralAccount{AccountID: 7}, nil
}

func (s *scriptedCollateral) ApproveSpotMarket(ctx context.Context, amount float64) error {
	return s.step("approve-spot")
}

func (s *scriptedCollateral) WrapCollateral(ctx context.Context, amount float64) error {
	return s.step("wrap")
}

func (s *scriptedCollateral) ExecuteAtomicOrder(ctx context.Context, side string, amount float64) error {
	return s.step("atomic-" + side)
}

func (s *scriptedCollateral) ApprovePerpsMarket(ctx context.Context, amount float64) error {
	return s.step("approve-perps")
}

func (s *scriptedCollateral) DepositMargin(ctx context.Context, amount float64) error {
	return s.step("deposit")
}

func newCollateralController(t *testing.T, mgr exchange.CollateralManager) *Controller {
	t.Helper()

	cfg := fastControllerConfig(false,
		&testutil.MockAdapter{VenueValue: types.VenueSynthetix},
		&testutil.MockAdapter{VenueValue: types.VenueBinance},
		&testutil.MockStore{}, &testutil.MockPublisher{})
	cfg.Collateral = mgr

	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestProvisionCollateralRunsStepsInOrder(t *testing.T) {
	mgr := &scriptedCollateral{}
	c := newCollateralController(t, mgr)

	if err := c.ProvisionCollateral(context.Background(), 10_000); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"ensure-account",
		"approve-spot",
		"wrap",
		"approve-spot",
		"atomic-sell",
		"approve-perps",
		"deposit",
	}
	if len(mgr.Steps) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, mgr.Steps)
	}
	for i := range want {
		if mgr.Steps[i] != want[i] {
			t.Fatalf("step %d: expected %s, got %s", i, want[i], mgr.Steps[i])
		}
	}
}

func TestProvisionCollateralAbortsOnStepFailure(t *testing.T) {
	mgr := &scriptedCollateral{FailStep: "wrap"}
	c := newCollateralController(t, mgr)

	err := c.ProvisionCollateral(context.Background(), 10_000)
	if !types.IsKind(err, types.KindPipelineStepFailed) {
		t.Fatalf("expected KindPipelineStepFailed, got %v", err)
	}

	// Nothing after the failed wrap runs, and nothing is rolled back.
	last := mgr.Steps[len(mgr.Steps)-1]
	if last != "wrap" {
		t.Errorf("expected pipeline to stop at wrap, last step %s", last)
	}

	var terr *types.TradeError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TradeError, got %T", err)
	}
	if terr.Op != "wrap-collateral" {
		t.Errorf("expected failing step in Op, got %s", terr.Op)
	}
}

func TestProvisionCollateralValidation(t *testing.T) {
	c := newCollateralController(t, &scriptedCollateral{})

	if err := c.ProvisionCollateral(context.Background(), 0); !types.IsKind(err, types.KindInvariantViolation) {
		t.Errorf("expected KindInvariantViolation for zero amount, got %v", err)
	}
	if err := c.ProvisionCollateral(context.Background(), -5); !types.IsKind(err, types.KindInvariantViolation) {
		t.Errorf("expected KindInvariantViolation for negative amount, got %v", err)
	}

	noMgr := newCollateralController(t, nil)
	if err := noMgr.ProvisionCollateral(context.Background(), 100); !types.IsKind(err, types.KindInvariantViolation) {
		t.Errorf("expected KindInvariantViolation without a manager, got %v", err)
	}
}
