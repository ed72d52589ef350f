// Package ledger defines the client surface of the on-chain marketplace and
// NFT contracts, as exposed by the ledger gateway.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
)

// ZeroAddress is the burn/mint address; issuance events transfer from it.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ItemRecord is one marketplace listing as stored on chain. Item ids are
// dense integers starting at 1; Sold never reverts to false.
type ItemRecord struct {
	ItemID  uint64   `json:"itemId"`
	TokenID uint64   `json:"tokenId"`
	Seller  string   `json:"seller"`
	Price   *big.Int `json:"-"`
	Sold    bool     `json:"sold"`
}

// Event is one log entry from a transaction receipt.
type Event struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// Receipt is the confirmation record of a mined transaction.
type Receipt struct {
	TxHash string  `json:"txHash"`
	Status string  `json:"status"`
	Events []Event `json:"events"`
}

// MintedTokenID extracts the token id issued by this receipt's mint, if any.
// Issuance is an ERC-721 Transfer out of the zero address.
func (r *Receipt) MintedTokenID() (uint64, bool) {
	for _, ev := range r.Events {
		if ev.Name != "Transfer" {
			continue
		}
		from, _ := ev.Args["from"].(string)
		if from != ZeroAddress {
			continue
		}
		if id, ok := eventTokenID(ev); ok {
			return id, true
		}
	}
	return 0, false
}

func eventTokenID(ev Event) (uint64, bool) {
	switch v := ev.Args["tokenId"].(type) {
	case float64:
		return uint64(v), true
	case string:
		var id uint64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			return id, true
		}
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return uint64(id), true
		}
	}
	return 0, false
}

// Transaction is a submitted state change awaiting on-chain confirmation.
type Transaction interface {
	Hash() string
	Wait(ctx context.Context) (*Receipt, error)
}

// Client is the ledger gateway surface consumed by the pipeline. Every call
// may fail with a transport or contract-revert error.
type Client interface {
	ItemCount(ctx context.Context) (uint64, error)
	Item(ctx context.Context, itemID uint64) (ItemRecord, error)
	TotalPrice(ctx context.Context, itemID uint64) (*big.Int, error)
	TokenURI(ctx context.Context, tokenID uint64) (string, error)

	PurchaseItem(ctx context.Context, itemID uint64, value *big.Int) (Transaction, error)
	Mint(ctx context.Context, uri string) (Transaction, error)
	SetApprovalForAll(ctx context.Context, operator string, approved bool) (Transaction, error)
	MakeItem(ctx context.Context, tokenAddress string, tokenID uint64, price *big.Int) (Transaction, error)
}

// ParseAmount parses a base-unit decimal string into a big integer amount.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

// FormatAmount renders a base-unit amount as the decimal string carried on
// the wire. A nil amount renders as "0".
func FormatAmount(a *big.Int) string {
	if a == nil {
		return "0"
	}
	return a.String()
}
