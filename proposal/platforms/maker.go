package platforms

import (
	"context"
	"strconv"
	"time"

	"github.com/govlens/govlens/proposal"
)

const (
	// defaultMakerExecutiveURL is the MakerDAO executive vote API,
	// limited to the small page of currently-active spells.
	defaultMakerExecutiveURL = "https://vote.makerdao.com/api/executive?start=0&limit=3&active=active"

	// defaultMakerPollsURL is the MakerDAO polling API.
	defaultMakerPollsURL = "https://vote.makerdao.com/api/polling/all-polls"

	// makerPollWindow is how long after its start a poll stays
	// eligible. Maker exposes no block-denominated end times, so this
	// recency window stands in for the block cutoff.
	makerPollWindow = 14 * 24 * time.Hour
)

// Maker fetches proposals from MakerDAO's two governance mechanisms:
// binding executive votes and non-binding signal polls. The two
// sub-resources are structurally unrelated and merged into one output,
// executives first.
type Maker struct {
	client       *proposal.Client
	executiveURL string
	pollsURL     string

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewMaker creates the Maker adapter. Empty URLs use the public
// endpoints.
func NewMaker(client *proposal.Client, executiveURL, pollsURL string) *Maker {
	if executiveURL == "" {
		executiveURL = defaultMakerExecutiveURL
	}
	if pollsURL == "" {
		pollsURL = defaultMakerPollsURL
	}
	return &Maker{
		client:       client,
		executiveURL: executiveURL,
		pollsURL:     pollsURL,
		now:          time.Now,
	}
}

// Name returns the filter key.
func (m *Maker) Name() string {
	return "maker"
}

// Platform returns the display name.
func (m *Maker) Platform() string {
	return proposal.PlatformMaker
}

// makerExecutive is one active executive vote. The spell's contract
// address doubles as its identifier.
type makerExecutive struct {
	Title        string `json:"title"`
	Address      string `json:"address"`
	ProposalLink string `json:"proposalLink"`
}

type makerPoll struct {
	Title     string    `json:"title"`
	PollID    int64     `json:"pollId"`
	URL       string    `json:"url"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type makerPollsResponse struct {
	Polls []makerPoll `json:"polls"`
}

// Fetch returns active executive votes followed by recent active
// polls. Maker has no block-denominated end times, so cutoff is unused
// and every proposal reports a null endBlock; polls instead apply the
// recency window.
func (m *Maker) Fetch(ctx context.Context, _ uint64) ([]proposal.Proposal, error) {
	var executives []makerExecutive
	if err := m.client.GetJSON(ctx, m.executiveURL, &executives); err != nil {
		return nil, &proposal.UpstreamError{Platform: m.Platform(), Err: err}
	}

	var out []proposal.Proposal
	for _, raw := range executives {
		out = append(out, proposal.Proposal{
			Title:    raw.Title,
			ID:       raw.Address,
			Platform: m.Platform(),
			State:    "active",
			Link:     raw.ProposalLink,
			EndBlock: nil,
		})
	}

	var polls makerPollsResponse
	if err := m.client.GetJSON(ctx, m.pollsURL, &polls); err != nil {
		return nil, &proposal.UpstreamError{Platform: m.Platform(), Err: err}
	}

	now := m.now()
	for _, raw := range polls.Polls {
		state := "past"
		if raw.EndDate.After(now) {
			state = "active"
		}

		// The poll list is most-recent first: the first poll that is
		// finished or older than the window ends the walk.
		if state != "active" || raw.StartDate.Before(now.Add(-makerPollWindow)) {
			break
		}

		out = append(out, proposal.Proposal{
			Title:    raw.Title,
			ID:       formatPollID(raw.PollID),
			Platform: m.Platform(),
			State:    state,
			Link:     raw.URL,
			EndBlock: nil,
		})
	}

	return out, nil
}

// formatPollID renders a poll id as the opaque string the shared
// schema expects.
func formatPollID(id int64) string {
	return strconv.FormatInt(id, 10)
}
