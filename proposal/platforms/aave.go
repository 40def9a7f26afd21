// Package platforms implements the per-protocol proposal adapters.
package platforms

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/govlens/govlens/proposal"
)

// defaultAaveSubgraphURL is the Aave governance v2 subgraph.
const defaultAaveSubgraphURL = "https://api.thegraph.com/subgraphs/name/aave/governance-v2"

// aaveQuery asks for proposals ordered by endBlock descending. The
// adapter's early termination depends on that ordering.
const aaveQuery = `{
    proposals(orderBy: endBlock, orderDirection: desc) {
        id
        state
        startBlock
        endBlock
        ipfsHash
        title
    }
}`

// aaveStateSynonyms maps raw subgraph states onto the shared state
// vocabulary.
var aaveStateSynonyms = map[string]string{
	"failed": "defeated",
}

// Aave fetches proposals from the Aave governance subgraph.
type Aave struct {
	client      *proposal.Client
	subgraphURL string
}

// NewAave creates the Aave adapter. An empty subgraphURL uses the
// public subgraph endpoint.
func NewAave(client *proposal.Client, subgraphURL string) *Aave {
	if subgraphURL == "" {
		subgraphURL = defaultAaveSubgraphURL
	}
	return &Aave{client: client, subgraphURL: subgraphURL}
}

// Name returns the filter key.
func (a *Aave) Name() string {
	return "aave"
}

// Platform returns the display name.
func (a *Aave) Platform() string {
	return proposal.PlatformAave
}

// aaveResponse is the subgraph response envelope. The subgraph encodes
// block numbers as decimal strings.
type aaveResponse struct {
	Data struct {
		Proposals []struct {
			ID       string `json:"id"`
			State    string `json:"state"`
			EndBlock string `json:"endBlock"`
			IPFSHash string `json:"ipfsHash"`
			Title    string `json:"title"`
		} `json:"proposals"`
	} `json:"data"`
}

// Fetch returns Aave proposals whose endBlock is at or above cutoff.
// The walk stops at the first proposal below the cutoff: with the list
// endBlock-descending, every later record fails the cutoff too.
func (a *Aave) Fetch(ctx context.Context, cutoff uint64) ([]proposal.Proposal, error) {
	var resp aaveResponse
	if err := a.client.PostGraphQL(ctx, a.subgraphURL, aaveQuery, &resp); err != nil {
		return nil, &proposal.UpstreamError{Platform: a.Platform(), Err: err}
	}

	var out []proposal.Proposal
	var prev uint64
	for i, raw := range resp.Data.Proposals {
		endBlock, err := strconv.ParseUint(raw.EndBlock, 10, 64)
		if err != nil {
			return nil, &proposal.UpstreamError{
				Platform: a.Platform(),
				Err:      fmt.Errorf("proposal %s: parse endBlock %q: %w", raw.ID, raw.EndBlock, err),
			}
		}

		// The descending-order precondition is what makes early
		// termination sound, so check it instead of assuming it.
		if i > 0 && endBlock > prev {
			return nil, &proposal.SchemaError{
				Platform: a.Platform(),
				Reason:   fmt.Sprintf("proposals not ordered by endBlock descending at index %d", i),
			}
		}
		prev = endBlock

		if endBlock < cutoff {
			break
		}

		state := strings.ToLower(raw.State)
		if mapped, ok := aaveStateSynonyms[state]; ok {
			state = mapped
		}

		eb := endBlock
		out = append(out, proposal.Proposal{
			Title:    raw.Title,
			ID:       raw.ID,
			Platform: a.Platform(),
			State:    state,
			Link:     fmt.Sprintf("https://app.aave.com/#/governance/%s-%s", raw.ID, raw.IPFSHash),
			EndBlock: &eb,
		})
	}

	return out, nil
}
