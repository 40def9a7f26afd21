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

const uniswapGraphFixture = `{
	"data": {
		"proposals": [
			{"id": "8", "status": "ACTIVE", "endBlock": "300"},
			{"id": "7", "status": "DEFEATED", "endBlock": "200"},
			{"id": "6", "status": "EXECUTED", "endBlock": "100"}
		]
	}
}`

// Title records deliberately out of graph order: pairing is by id.
const uniswapTitleFixture = `{
	"proposals": [
		{"id": 6, "title": "Deploy v3 on Polygon", "uniswap_url": "https://app.uniswap.org/#/vote/0/6"},
		{"id": 8, "title": "Create the Uniswap Foundation", "uniswap_url": "https://app.uniswap.org/#/vote/0/8"},
		{"id": 7, "title": "Reduce governance threshold", "uniswap_url": "https://app.uniswap.org/#/vote/0/7"}
	]
}`

func newUniswapTest(t *testing.T, graphBody, titleBody string) *Uniswap {
	t.Helper()

	graph := httptest.NewServer(jsonHandler(t, graphBody))
	t.Cleanup(graph.Close)

	titles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(titleBody))
	}))
	t.Cleanup(titles.Close)

	return NewUniswap(newTestClient(), graph.URL, titles.URL)
}

func TestUniswap_Fetch_PairsByID(t *testing.T) {
	adapter := newUniswapTest(t, uniswapGraphFixture, uniswapTitleFixture)

	proposals, err := adapter.Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, proposals, 3)

	first := proposals[0]
	assert.Equal(t, "8", first.ID)
	assert.Equal(t, "Create the Uniswap Foundation", first.Title)
	assert.Equal(t, "https://app.uniswap.org/#/vote/0/8", first.Link)
	assert.Equal(t, proposal.PlatformUniswap, first.Platform)
	assert.Equal(t, "active", first.State)
	require.NotNil(t, first.EndBlock)
	assert.Equal(t, uint64(300), *first.EndBlock)

	assert.Equal(t, "Reduce governance threshold", proposals[1].Title)
	assert.Equal(t, "Deploy v3 on Polygon", proposals[2].Title)
}

func TestUniswap_Fetch_PositionalFallbackWithoutIDs(t *testing.T) {
	const titlesNoIDs = `{
		"proposals": [
			{"title": "First", "uniswap_url": "https://app.uniswap.org/#/vote/0/8"},
			{"title": "Second", "uniswap_url": "https://app.uniswap.org/#/vote/0/7"},
			{"title": "Third", "uniswap_url": "https://app.uniswap.org/#/vote/0/6"}
		]
	}`
	adapter := newUniswapTest(t, uniswapGraphFixture, titlesNoIDs)

	proposals, err := adapter.Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, proposals, 3)
	assert.Equal(t, "First", proposals[0].Title)
	assert.Equal(t, "Second", proposals[1].Title)
	assert.Equal(t, "Third", proposals[2].Title)
}

func TestUniswap_Fetch_StopsBelowCutoff(t *testing.T) {
	adapter := newUniswapTest(t, uniswapGraphFixture, uniswapTitleFixture)

	proposals, err := adapter.Fetch(context.Background(), 150)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, "8", proposals[0].ID)
	assert.Equal(t, "7", proposals[1].ID)
}

func TestUniswap_Fetch_MissingPairingIsSchemaMismatch(t *testing.T) {
	// Title records carry ids but none for proposal 7, and list position
	// cannot stand in because the positional record is id-keyed too.
	const titlesMissing = `{
		"proposals": [
			{"id": 8, "title": "Create the Uniswap Foundation", "uniswap_url": "https://app.uniswap.org/#/vote/0/8"},
			{"id": 6, "title": "Deploy v3 on Polygon", "uniswap_url": "https://app.uniswap.org/#/vote/0/6"}
		]
	}`
	adapter := newUniswapTest(t, uniswapGraphFixture, titlesMissing)

	_, err := adapter.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, proposal.IsSchemaMismatch(err))
}

func TestUniswap_Fetch_DetectsOrderingViolation(t *testing.T) {
	const outOfOrder = `{
		"data": {
			"proposals": [
				{"id": "6", "status": "EXECUTED", "endBlock": "100"},
				{"id": "8", "status": "ACTIVE", "endBlock": "300"}
			]
		}
	}`
	adapter := newUniswapTest(t, outOfOrder, uniswapTitleFixture)

	_, err := adapter.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, proposal.IsSchemaMismatch(err))
}

func TestUniswap_Fetch_TitleServiceFailure(t *testing.T) {
	graph := httptest.NewServer(jsonHandler(t, uniswapGraphFixture))
	defer graph.Close()
	titles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer titles.Close()

	adapter := NewUniswap(newTestClient(), graph.URL, titles.URL)
	_, err := adapter.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, proposal.IsUpstream(err))
}
