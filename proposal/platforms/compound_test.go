package platforms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govlens/govlens/proposal"
)

const compoundFixture = `{
	"proposals": [
		{
			"id": 42,
			"title": "",
			"description": "# Proposal 42: Raise Reserve Factor\nThis proposal raises the reserve factor for cUSDC.",
			"states": [
				{"state": "Pending", "start_time": 1000, "end_time": 2000},
				{"state": "Active", "start_time": 2000, "end_time": 3000},
				{"state": "Succeeded", "start_time": 3000, "end_time": 4000}
			]
		},
		{
			"id": 41,
			"title": "Add COMP as collateral",
			"description": "# Add COMP\nLong form text.",
			"states": [
				{"state": "Pending", "start_time": 500, "end_time": 900},
				{"state": "Defeated", "start_time": 900, "end_time": 1500}
			]
		},
		{
			"id": 40,
			"title": "Still open",
			"description": "# Still open\nVoting in progress.",
			"states": [
				{"state": "Active", "start_time": 400, "end_time": null}
			]
		}
	]
}`

func TestCompound_Fetch_DerivesTitleFromDescription(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, compoundFixture))
	defer server.Close()

	adapter := NewCompound(newTestClient(), server.URL)
	proposals, err := adapter.Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, proposals)

	assert.Equal(t, "Proposal 42: Raise Reserve Factor", proposals[0].Title)
}

func TestCompound_Fetch_PrefersDirectTitle(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, compoundFixture))
	defer server.Close()

	adapter := NewCompound(newTestClient(), server.URL)
	proposals, err := adapter.Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, proposals, 2)

	assert.Equal(t, "Add COMP as collateral", proposals[1].Title)
}

func TestCompound_Fetch_NormalizesStateAndLink(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, compoundFixture))
	defer server.Close()

	adapter := NewCompound(newTestClient(), server.URL)
	proposals, err := adapter.Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, proposals, 2)

	first := proposals[0]
	assert.Equal(t, "42", first.ID)
	assert.Equal(t, proposal.PlatformCompound, first.Platform)
	assert.Equal(t, "succeeded", first.State)
	assert.Equal(t, "https://compound.finance/governance/proposals/42", first.Link)
	assert.Nil(t, first.EndBlock)

	assert.Equal(t, "defeated", proposals[1].State)
}

func TestCompound_Fetch_StopsAtOpenProposalHistory(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, compoundFixture))
	defer server.Close()

	adapter := NewCompound(newTestClient(), server.URL)
	proposals, err := adapter.Fetch(context.Background(), 0)
	require.NoError(t, err)

	// Proposal 40's current state has no end_time: closed history ends
	// there, and it and everything after is excluded.
	require.Len(t, proposals, 2)
	assert.Equal(t, "42", proposals[0].ID)
	assert.Equal(t, "41", proposals[1].ID)
}

func TestCompound_Fetch_StopsBelowCutoffWhenEndBlockPresent(t *testing.T) {
	const withEndBlocks = `{
		"proposals": [
			{
				"id": 2,
				"title": "Recent",
				"description": "",
				"end_block": 300,
				"states": [{"state": "Succeeded", "start_time": 1, "end_time": 2}]
			},
			{
				"id": 1,
				"title": "Old",
				"description": "",
				"end_block": 100,
				"states": [{"state": "Executed", "start_time": 1, "end_time": 2}]
			}
		]
	}`
	server := httptest.NewServer(jsonHandler(t, withEndBlocks))
	defer server.Close()

	adapter := NewCompound(newTestClient(), server.URL)
	proposals, err := adapter.Fetch(context.Background(), 150)
	require.NoError(t, err)

	require.Len(t, proposals, 1)
	assert.Equal(t, "2", proposals[0].ID)
	require.NotNil(t, proposals[0].EndBlock)
	assert.Equal(t, uint64(300), *proposals[0].EndBlock)
}

func TestCompound_Fetch_EmptyStateHistoryIsSchemaMismatch(t *testing.T) {
	const noStates = `{"proposals": [{"id": 1, "title": "x", "description": "", "states": []}]}`
	server := httptest.NewServer(jsonHandler(t, noStates))
	defer server.Close()

	adapter := NewCompound(newTestClient(), server.URL)
	_, err := adapter.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, proposal.IsSchemaMismatch(err))
}

func TestCompound_Fetch_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewCompound(newTestClient(), server.URL)
	_, err := adapter.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, proposal.IsUpstream(err))
}

func TestCompoundTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  compoundProposal
		want string
	}{
		{
			name: "direct title wins",
			raw:  compoundProposal{Title: "Direct", Description: "# Derived\nbody"},
			want: "Direct",
		},
		{
			name: "derived from heading line",
			raw:  compoundProposal{Description: "# Proposal 42: Raise Reserve Factor\nbody text"},
			want: "Proposal 42: Raise Reserve Factor",
		},
		{
			name: "description without heading prefix",
			raw:  compoundProposal{Description: "Plain first line\nrest"},
			want: "Plain first line",
		},
		{
			name: "single line description",
			raw:  compoundProposal{Description: "# Only line"},
			want: "Only line",
		},
		{
			name: "empty everything",
			raw:  compoundProposal{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compoundTitle(tt.raw))
		})
	}
}
