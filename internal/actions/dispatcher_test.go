// internal/actions/dispatcher_test.go
package actions

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "marketplace-sync/internal/common/errors"
	"marketplace-sync/internal/common/logger"
	"marketplace-sync/internal/ledger"
)

// fakeTx confirms (or fails) immediately.
type fakeTx struct {
	hash    string
	receipt *ledger.Receipt
	waitErr error
}

func (t *fakeTx) Hash() string {
	return t.hash
}

func (t *fakeTx) Wait(context.Context) (*ledger.Receipt, error) {
	if t.waitErr != nil {
		return nil, t.waitErr
	}
	return t.receipt, nil
}

// fakeLedger records the order of submitted operations.
type fakeLedger struct {
	calls []string

	purchaseValue *big.Int
	purchaseErr   error
	purchaseWait  error

	mintReceipt *ledger.Receipt
	mintErr     error

	approvalOperator string
	approvalErr      error

	listedToken   uint64
	listedAddress string
	listedPrice   *big.Int
	listingErr    error
}

func (f *fakeLedger) ItemCount(context.Context) (uint64, error) { return 0, nil }

func (f *fakeLedger) Item(context.Context, uint64) (ledger.ItemRecord, error) {
	return ledger.ItemRecord{}, errors.New("not supported")
}

func (f *fakeLedger) TotalPrice(context.Context, uint64) (*big.Int, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) TokenURI(context.Context, uint64) (string, error) {
	return "", errors.New("not supported")
}

func (f *fakeLedger) PurchaseItem(_ context.Context, _ uint64, value *big.Int) (ledger.Transaction, error) {
	f.calls = append(f.calls, "purchase")
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	f.purchaseValue = value
	return &fakeTx{hash: "0xbuy", receipt: &ledger.Receipt{Status: ledger.StatusConfirmed}, waitErr: f.purchaseWait}, nil
}

func (f *fakeLedger) Mint(context.Context, string) (ledger.Transaction, error) {
	f.calls = append(f.calls, "mint")
	if f.mintErr != nil {
		return nil, f.mintErr
	}
	return &fakeTx{hash: "0xmint", receipt: f.mintReceipt}, nil
}

func (f *fakeLedger) SetApprovalForAll(_ context.Context, operator string, _ bool) (ledger.Transaction, error) {
	f.calls = append(f.calls, "approval")
	if f.approvalErr != nil {
		return nil, f.approvalErr
	}
	f.approvalOperator = operator
	return &fakeTx{hash: "0xapprove", receipt: &ledger.Receipt{Status: ledger.StatusConfirmed}}, nil
}

func (f *fakeLedger) MakeItem(_ context.Context, tokenAddress string, tokenID uint64, price *big.Int) (ledger.Transaction, error) {
	f.calls = append(f.calls, "listing")
	if f.listingErr != nil {
		return nil, f.listingErr
	}
	f.listedAddress = tokenAddress
	f.listedToken = tokenID
	f.listedPrice = price
	return &fakeTx{hash: "0xlist", receipt: &ledger.Receipt{Status: ledger.StatusConfirmed}}, nil
}

func mintReceipt(tokenID uint64) *ledger.Receipt {
	return &ledger.Receipt{
		TxHash: "0xmint",
		Status: ledger.StatusConfirmed,
		Events: []ledger.Event{
			{Name: "Transfer", Args: map[string]interface{}{"from": ledger.ZeroAddress, "tokenId": float64(tokenID)}},
		},
	}
}

func newTestDispatcher(t *testing.T, fl *fakeLedger, refreshed *int) *Dispatcher {
	t.Helper()
	return NewDispatcher(fl, logger.NewTestLogger(t), "0xMarket", "0xNFT", func(context.Context) {
		if refreshed != nil {
			*refreshed++
		}
	})
}

func TestPurchase_ConfirmedTriggersRefresh(t *testing.T) {
	fl := &fakeLedger{}
	refreshed := 0
	d := newTestDispatcher(t, fl, &refreshed)

	err := d.Purchase(context.Background(), 3, big.NewInt(105))

	require.NoError(t, err)
	assert.Equal(t, big.NewInt(105), fl.purchaseValue)
	assert.Equal(t, 1, refreshed)
}

func TestPurchase_SubmitFailureSkipsRefresh(t *testing.T) {
	fl := &fakeLedger{purchaseErr: errors.New("insufficient funds")}
	refreshed := 0
	d := newTestDispatcher(t, fl, &refreshed)

	err := d.Purchase(context.Background(), 3, big.NewInt(105))

	require.Error(t, err)
	se, ok := cerrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, cerrors.ErrCodePurchaseFailed, se.Code)
	assert.Equal(t, 0, refreshed)
}

func TestPurchase_RevertDuringWaitSkipsRefresh(t *testing.T) {
	fl := &fakeLedger{purchaseWait: errors.New("transaction 0xbuy reverted")}
	refreshed := 0
	d := newTestDispatcher(t, fl, &refreshed)

	err := d.Purchase(context.Background(), 3, big.NewInt(105))

	require.Error(t, err)
	assert.Equal(t, 0, refreshed)
}

func TestMintAndList_RunsStepsInSequence(t *testing.T) {
	fl := &fakeLedger{mintReceipt: mintReceipt(42)}
	refreshed := 0
	d := newTestDispatcher(t, fl, &refreshed)

	result, err := d.MintAndList(context.Background(), "https://gw.example/ipfs/QmDoc", big.NewInt(500))

	require.NoError(t, err)
	assert.Equal(t, []string{"mint", "approval", "listing"}, fl.calls)
	assert.Equal(t, uint64(42), result.TokenID)
	assert.Equal(t, "0xMarket", fl.approvalOperator)
	assert.Equal(t, "0xNFT", fl.listedAddress)
	assert.Equal(t, uint64(42), fl.listedToken)
	assert.Equal(t, big.NewInt(500), fl.listedPrice)
	assert.Equal(t, 1, refreshed)
}

func TestMintAndList_NoIssuanceEventAbortsBeforeApproval(t *testing.T) {
	fl := &fakeLedger{mintReceipt: &ledger.Receipt{
		TxHash: "0xmint",
		Status: ledger.StatusConfirmed,
		Events: []ledger.Event{
			{Name: "Transfer", Args: map[string]interface{}{"from": "0xSomeoneElse", "tokenId": float64(7)}},
		},
	}}
	refreshed := 0
	d := newTestDispatcher(t, fl, &refreshed)

	_, err := d.MintAndList(context.Background(), "uri", big.NewInt(500))

	require.Error(t, err)
	se, ok := cerrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, cerrors.ErrCodeNoIssuanceEvent, se.Code)
	assert.Equal(t, []string{"mint"}, fl.calls)
	assert.Equal(t, 0, refreshed)
}

func TestMintAndList_ApprovalFailureAbortsListing(t *testing.T) {
	fl := &fakeLedger{
		mintReceipt: mintReceipt(42),
		approvalErr: errors.New("rejected"),
	}
	refreshed := 0
	d := newTestDispatcher(t, fl, &refreshed)

	_, err := d.MintAndList(context.Background(), "uri", big.NewInt(500))

	require.Error(t, err)
	se, ok := cerrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, cerrors.ErrCodeApprovalFailed, se.Code)
	assert.Equal(t, []string{"mint", "approval"}, fl.calls)
	assert.Equal(t, 0, refreshed)
}

func TestMintAndList_ListingFailureIdentifiesStep(t *testing.T) {
	fl := &fakeLedger{
		mintReceipt: mintReceipt(42),
		listingErr:  errors.New("reverted"),
	}
	refreshed := 0
	d := newTestDispatcher(t, fl, &refreshed)

	_, err := d.MintAndList(context.Background(), "uri", big.NewInt(500))

	require.Error(t, err)
	se, ok := cerrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, cerrors.ErrCodeListingFailed, se.Code)
	assert.Equal(t, 0, refreshed)
}

func TestMintAndList_MintFailureSubmitsNothingElse(t *testing.T) {
	fl := &fakeLedger{mintErr: errors.New("gas estimation failed")}
	d := newTestDispatcher(t, fl, nil)

	_, err := d.MintAndList(context.Background(), "uri", big.NewInt(500))

	require.Error(t, err)
	se, ok := cerrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, cerrors.ErrCodeMintFailed, se.Code)
	assert.Equal(t, []string{"mint"}, fl.calls)
}
