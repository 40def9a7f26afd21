package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/govlens/govlens/proposal"
)

const (
	// defaultUniswapSubgraphURL is arr00's Uniswap governance v2 subgraph.
	defaultUniswapSubgraphURL = "https://api.thegraph.com/subgraphs/name/arr00/uniswap-governance-v2"

	// defaultUniswapTitleURL serves human titles and canonical links for
	// the same proposals.
	defaultUniswapTitleURL = "https://uni.vote/api/governance/proposals"

	// uniswapTitlePageSize is the page size for the title/link list.
	uniswapTitlePageSize = 100
)

const uniswapQuery = `{
    proposals(orderBy: endBlock, orderDirection: desc) {
        id
        status
        endBlock
    }
}`

// Uniswap fetches proposals from the governance subgraph and enriches
// them with titles and links from a companion REST service.
type Uniswap struct {
	client      *proposal.Client
	subgraphURL string
	titleURL    string
}

// NewUniswap creates the Uniswap adapter. Empty URLs use the public
// endpoints.
func NewUniswap(client *proposal.Client, subgraphURL, titleURL string) *Uniswap {
	if subgraphURL == "" {
		subgraphURL = defaultUniswapSubgraphURL
	}
	if titleURL == "" {
		titleURL = defaultUniswapTitleURL
	}
	return &Uniswap{client: client, subgraphURL: subgraphURL, titleURL: titleURL}
}

// Name returns the filter key.
func (u *Uniswap) Name() string {
	return "uniswap"
}

// Platform returns the display name.
func (u *Uniswap) Platform() string {
	return proposal.PlatformUniswap
}

type uniswapResponse struct {
	Data struct {
		Proposals []struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			EndBlock string `json:"endBlock"`
		} `json:"proposals"`
	} `json:"data"`
}

// uniswapTitleRecord is one entry from the title/link service. The id
// may be absent on old records, in which case pairing falls back to
// list position.
type uniswapTitleRecord struct {
	ID         json.Number `json:"id"`
	Title      string      `json:"title"`
	UniswapURL string      `json:"uniswap_url"`
}

type uniswapTitleResponse struct {
	Proposals []uniswapTitleRecord `json:"proposals"`
}

// Fetch returns Uniswap proposals whose endBlock is at or above cutoff.
// Titles and links come from the companion service, paired by proposal
// id where the record exposes one and by list position otherwise. A
// proposal with neither pairing available fails the whole adapter with
// a schema mismatch rather than silently mislabeling it.
func (u *Uniswap) Fetch(ctx context.Context, cutoff uint64) ([]proposal.Proposal, error) {
	var resp uniswapResponse
	if err := u.client.PostGraphQL(ctx, u.subgraphURL, uniswapQuery, &resp); err != nil {
		return nil, &proposal.UpstreamError{Platform: u.Platform(), Err: err}
	}

	titleURL := fmt.Sprintf("%s?page_size=%d", u.titleURL, uniswapTitlePageSize)
	var titles uniswapTitleResponse
	if err := u.client.GetJSON(ctx, titleURL, &titles); err != nil {
		return nil, &proposal.UpstreamError{Platform: u.Platform(), Err: err}
	}

	byID := make(map[string]uniswapTitleRecord, len(titles.Proposals))
	for _, rec := range titles.Proposals {
		if id := rec.ID.String(); id != "" {
			byID[id] = rec
		}
	}

	var out []proposal.Proposal
	var prev uint64
	for i, raw := range resp.Data.Proposals {
		endBlock, err := strconv.ParseUint(raw.EndBlock, 10, 64)
		if err != nil {
			return nil, &proposal.UpstreamError{
				Platform: u.Platform(),
				Err:      fmt.Errorf("proposal %s: parse endBlock %q: %w", raw.ID, raw.EndBlock, err),
			}
		}

		if i > 0 && endBlock > prev {
			return nil, &proposal.SchemaError{
				Platform: u.Platform(),
				Reason:   fmt.Sprintf("proposals not ordered by endBlock descending at index %d", i),
			}
		}
		prev = endBlock

		if endBlock < cutoff {
			break
		}

		rec, ok := byID[raw.ID]
		if !ok {
			// Positional fallback, only for title records predating ids.
			if i >= len(titles.Proposals) || titles.Proposals[i].ID.String() != "" {
				return nil, &proposal.SchemaError{
					Platform: u.Platform(),
					Reason:   fmt.Sprintf("no title record for proposal %s", raw.ID),
				}
			}
			rec = titles.Proposals[i]
		}

		eb := endBlock
		out = append(out, proposal.Proposal{
			Title:    rec.Title,
			ID:       raw.ID,
			Platform: u.Platform(),
			State:    strings.ToLower(raw.Status),
			Link:     rec.UniswapURL,
			EndBlock: &eb,
		})
	}

	return out, nil
}
