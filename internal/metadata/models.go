// internal/metadata/models.go
package metadata

// Document is the display metadata for one token. All three fields are
// always populated after resolution, from the fetched document or from the
// sentinel.
type Document struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Sentinel field values used when resolution permanently fails.
const (
	SentinelName        = "Unknown NFT"
	SentinelDescription = "Metadata could not be loaded"
	SentinelImage       = "https://gateway.ipfs.io/ipfs/placeholder-nft.png"
)

// Sentinel returns the fixed fallback document.
func Sentinel() Document {
	return Document{
		Name:        SentinelName,
		Description: SentinelDescription,
		Image:       SentinelImage,
	}
}
