// Package proposal implements the governance proposal aggregation engine.
// Each supported platform contributes an Adapter that translates its
// external API schema into the common Proposal record; the Aggregator
// combines adapter outputs into one ordered result.
package proposal

import "context"

// Platform display names. Adapters own disjoint values, so the
// aggregate needs no de-duplication.
const (
	PlatformAave     = "Aave"
	PlatformCompound = "Compound"
	PlatformUniswap  = "Uniswap"
	PlatformMaker    = "Maker"
)

// Proposal is the unified governance proposal record.
// It is a request-scoped value object: immutable once constructed and
// carrying no reference back to the raw source payload.
type Proposal struct {
	// Title is the human-readable proposal title. The source varies by
	// platform: a direct field, a poll title, or the first line of a
	// free-text description.
	Title string `json:"title"`

	// ID is the platform-local identifier (numeric string, contract
	// address, or poll id), opaque for cross-platform purposes.
	ID string `json:"id"`

	// Platform is one of the Platform* display names.
	Platform string `json:"platform"`

	// State is the lowercase status, mapped from the platform's raw
	// vocabulary.
	State string `json:"state"`

	// Link is the URL to view the proposal on the platform's own UI.
	Link string `json:"link"`

	// EndBlock is the block height at which voting concludes. Nil when
	// the platform does not expose block-denominated timing.
	EndBlock *uint64 `json:"endBlock"`
}

// Adapter translates one platform's external API into Proposal records.
type Adapter interface {
	// Name returns the lowercase platform key used for filter matching
	// (e.g. "aave").
	Name() string

	// Platform returns the display name (e.g. "Aave").
	Platform() string

	// Fetch returns normalized proposals, already truncated to the
	// platform's cutoff rule: proposals whose end block is below cutoff
	// are excluded. Platforms without block-denominated end times apply
	// a date-based recency rule instead and ignore cutoff.
	Fetch(ctx context.Context, cutoff uint64) ([]Proposal, error)
}

// Result is the aggregate of one query.
type Result struct {
	// Proposals is the concatenation of adapter outputs in fixed
	// platform order, each adapter's internal order preserved.
	Proposals []Proposal

	// BlockNumber is the cutoff height that was used.
	BlockNumber uint64

	// Failed lists display names of platforms whose adapter failed.
	// The remaining platforms' proposals are still present.
	Failed []string
}
