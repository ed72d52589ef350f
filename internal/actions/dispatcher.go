// Package actions executes state-changing marketplace operations. Each
// operation waits for on-chain confirmation before reporting success, then
// requests a fresh aggregation pass so the catalog reflects the change.
package actions

import (
	"context"
	"math/big"

	cerrors "marketplace-sync/internal/common/errors"
	"marketplace-sync/internal/common/logger"
	"marketplace-sync/internal/common/metrics"
	"marketplace-sync/internal/ledger"
)

// Dispatcher submits transactions against the ledger client. Errors are
// surfaced to the caller as-is; there is no automatic retry and no catalog
// refresh on failure.
type Dispatcher struct {
	ledger             ledger.Client
	logger             logger.Logger
	marketplaceAddress string
	nftAddress         string
	refresh            func(ctx context.Context)
}

// NewDispatcher wires the dispatcher. refresh is invoked after a confirmed
// operation; it may be nil.
func NewDispatcher(lc ledger.Client, log logger.Logger, marketplaceAddress, nftAddress string, refresh func(ctx context.Context)) *Dispatcher {
	return &Dispatcher{
		ledger:             lc,
		logger:             log.With(map[string]interface{}{"component": "action-dispatcher"}),
		marketplaceAddress: marketplaceAddress,
		nftAddress:         nftAddress,
		refresh:            refresh,
	}
}

// Purchase buys one item, carrying totalPrice (price plus marketplace fee)
// as payment.
func (d *Dispatcher) Purchase(ctx context.Context, itemID uint64, totalPrice *big.Int) error {
	log := d.logger.With(map[string]interface{}{"action": "purchase", "itemId": itemID})
	log.Info("submitting purchase", map[string]interface{}{"value": ledger.FormatAmount(totalPrice)})

	tx, err := d.ledger.PurchaseItem(ctx, itemID, totalPrice)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("purchase", "failure").Inc()
		return cerrors.NewPurchaseFailedError(itemID, err)
	}

	if _, err := tx.Wait(ctx); err != nil {
		metrics.ActionsTotal.WithLabelValues("purchase", "failure").Inc()
		return cerrors.NewPurchaseFailedError(itemID, err)
	}

	metrics.ActionsTotal.WithLabelValues("purchase", "success").Inc()
	log.Info("purchase confirmed", map[string]interface{}{"txHash": tx.Hash()})

	if d.refresh != nil {
		d.refresh(ctx)
	}
	return nil
}

// MintAndListResult reports the transactions of a completed mint-and-list.
type MintAndListResult struct {
	TokenID    uint64 `json:"tokenId"`
	MintTx     string `json:"mintTx"`
	ApprovalTx string `json:"approvalTx"`
	ListingTx  string `json:"listingTx"`
}

// MintAndList mints a token for uri, approves the marketplace operator and
// lists the token at price. Steps run strictly in sequence; the first
// failure aborts the rest and the returned error identifies the step.
// Earlier steps are not rolled back, so a minted-but-unlisted token is a
// possible outcome.
func (d *Dispatcher) MintAndList(ctx context.Context, uri string, price *big.Int) (*MintAndListResult, error) {
	log := d.logger.With(map[string]interface{}{"action": "mint-and-list", "uri": uri})

	mintTx, err := d.ledger.Mint(ctx, uri)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("mint_and_list", "failure").Inc()
		return nil, cerrors.NewMintFailedError(err)
	}
	receipt, err := mintTx.Wait(ctx)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("mint_and_list", "failure").Inc()
		return nil, cerrors.NewMintFailedError(err)
	}

	tokenID, ok := receipt.MintedTokenID()
	if !ok {
		metrics.ActionsTotal.WithLabelValues("mint_and_list", "failure").Inc()
		return nil, cerrors.NewNoIssuanceEventError(mintTx.Hash())
	}
	log.Info("mint confirmed", map[string]interface{}{"tokenId": tokenID, "txHash": mintTx.Hash()})

	approvalTx, err := d.ledger.SetApprovalForAll(ctx, d.marketplaceAddress, true)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("mint_and_list", "failure").Inc()
		return nil, cerrors.NewApprovalFailedError(d.marketplaceAddress, err)
	}
	if _, err := approvalTx.Wait(ctx); err != nil {
		metrics.ActionsTotal.WithLabelValues("mint_and_list", "failure").Inc()
		return nil, cerrors.NewApprovalFailedError(d.marketplaceAddress, err)
	}
	log.Info("approval confirmed", map[string]interface{}{"txHash": approvalTx.Hash()})

	listingTx, err := d.ledger.MakeItem(ctx, d.nftAddress, tokenID, price)
	if err != nil {
		metrics.ActionsTotal.WithLabelValues("mint_and_list", "failure").Inc()
		return nil, cerrors.NewListingFailedError(tokenID, err)
	}
	if _, err := listingTx.Wait(ctx); err != nil {
		metrics.ActionsTotal.WithLabelValues("mint_and_list", "failure").Inc()
		return nil, cerrors.NewListingFailedError(tokenID, err)
	}

	metrics.ActionsTotal.WithLabelValues("mint_and_list", "success").Inc()
	log.Info("listing confirmed", map[string]interface{}{"tokenId": tokenID, "txHash": listingTx.Hash()})

	if d.refresh != nil {
		d.refresh(ctx)
	}

	return &MintAndListResult{
		TokenID:    tokenID,
		MintTx:     mintTx.Hash(),
		ApprovalTx: approvalTx.Hash(),
		ListingTx:  listingTx.Hash(),
	}, nil
}
