package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/govlens/govlens/proposal"
)

// defaultCompoundAPIURL is the Compound governance REST API.
const defaultCompoundAPIURL = "https://api.compound.finance/api/v2/governance/proposals"

// Compound fetches proposals from the Compound governance API.
type Compound struct {
	client *proposal.Client
	apiURL string
}

// NewCompound creates the Compound adapter. An empty apiURL uses the
// public endpoint.
func NewCompound(client *proposal.Client, apiURL string) *Compound {
	if apiURL == "" {
		apiURL = defaultCompoundAPIURL
	}
	return &Compound{client: client, apiURL: apiURL}
}

// Name returns the filter key.
func (c *Compound) Name() string {
	return "compound"
}

// Platform returns the display name.
func (c *Compound) Platform() string {
	return proposal.PlatformCompound
}

// compoundState is one entry in a proposal's state history. EndTime is
// nil while the state is still open.
type compoundState struct {
	State     string `json:"state"`
	StartTime *int64 `json:"start_time"`
	EndTime   *int64 `json:"end_time"`
}

type compoundProposal struct {
	ID          json.Number     `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	EndBlock    *uint64         `json:"end_block"`
	States      []compoundState `json:"states"`
}

type compoundResponse struct {
	Proposals []compoundProposal `json:"proposals"`
}

// Fetch returns Compound proposals, most recent first. The walk stops
// at the first proposal whose current state has no end time, which
// marks the end of closed-proposal history, or at the first proposal
// whose end block falls below cutoff when the record carries one.
func (c *Compound) Fetch(ctx context.Context, cutoff uint64) ([]proposal.Proposal, error) {
	var resp compoundResponse
	if err := c.client.GetJSON(ctx, c.apiURL, &resp); err != nil {
		return nil, &proposal.UpstreamError{Platform: c.Platform(), Err: err}
	}

	var out []proposal.Proposal
	for _, raw := range resp.Proposals {
		if len(raw.States) == 0 {
			return nil, &proposal.SchemaError{
				Platform: c.Platform(),
				Reason:   fmt.Sprintf("proposal %s has no state history", raw.ID),
			}
		}

		current := raw.States[len(raw.States)-1]
		if current.EndTime == nil {
			break
		}
		if raw.EndBlock != nil && *raw.EndBlock < cutoff {
			break
		}

		out = append(out, proposal.Proposal{
			Title:    compoundTitle(raw),
			ID:       raw.ID.String(),
			Platform: c.Platform(),
			State:    strings.ToLower(current.State),
			Link:     "https://compound.finance/governance/proposals/" + raw.ID.String(),
			EndBlock: raw.EndBlock,
		})
	}

	return out, nil
}

// compoundTitle prefers the API's title field and otherwise derives a
// title from the first line of the markdown description, stripping the
// leading heading marker.
func compoundTitle(raw compoundProposal) string {
	if raw.Title != "" {
		return raw.Title
	}

	line := raw.Description
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimPrefix(line, "# ")

	return strings.TrimSpace(line)
}
