// internal/catalog/models.go
package catalog

import "time"

// Entry is one display-ready catalog row: the economically relevant on-chain
// fields of an item record joined with its resolved metadata. Amounts are
// base-unit decimal strings. Entries are never mutated after a pass.
type Entry struct {
	ItemID      uint64 `json:"itemId"`
	TokenID     uint64 `json:"tokenId"`
	Seller      string `json:"seller"`
	Price       string `json:"price"`
	TotalPrice  string `json:"totalPrice"`
	Sold        bool   `json:"sold"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Snapshot is the full-marketplace catalog produced by one aggregation pass.
// Entries are ordered by ascending item id. A snapshot replaces the previous
// one wholesale; it is never patched.
type Snapshot struct {
	PassID      string    `json:"passId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Entries     []Entry   `json:"entries"`
}

// OwnedSnapshot is the ownership-scoped catalog: everything the account has
// listed, with the sold subset broken out. Sold is always a subset of Listed.
type OwnedSnapshot struct {
	PassID      string    `json:"passId"`
	Account     string    `json:"account"`
	GeneratedAt time.Time `json:"generatedAt"`
	Listed      []Entry   `json:"listed"`
	Sold        []Entry   `json:"sold"`
}
