package search

import (
	"context"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(maxCandidates int) *DuckDuckGoClient {
	return NewDuckDuckGoClient(&DuckDuckGoConfig{
		UserAgent:     "test-agent",
		Timeout:       5 * time.Second,
		MaxCandidates: maxCandidates,
	})
}

func mockTokenPage(body string) {
	httpmock.RegisterResponder("GET", ddgHomeURL,
		httpmock.NewStringResponder(200, body))
}

func mockImageResults(results []ddgImageResult) {
	httpmock.RegisterResponder("GET", ddgImagesURL,
		httpmock.NewJsonResponderOrPanic(200, ddgImageResponse{Results: results}))
}

func TestSearchReturnsCandidatesInProviderOrder(t *testing.T) {
	client := newTestClient(5)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	mockTokenPage(`<script>vqd="3-12345678";</script>`)
	mockImageResults([]ddgImageResult{
		{Image: "http://img/a.jpg", Title: "A", URL: "http://page/a"},
		{Image: "http://img/b.jpg", Title: "B", URL: "http://page/b"},
		{Image: "http://img/c.jpg", Title: "C", URL: "http://page/c"},
	})

	candidates, err := client.Search(context.Background(), "tiger")

	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "http://img/a.jpg", candidates[0].URL)
	assert.Equal(t, "A", candidates[0].Title)
	assert.Equal(t, "http://page/a", candidates[0].SourceURL)
	assert.Equal(t, "http://img/c.jpg", candidates[2].URL)

	// One token request plus one image request.
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestSearchCapsCandidates(t *testing.T) {
	client := newTestClient(2)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	mockTokenPage(`vqd='3-999'`)
	mockImageResults([]ddgImageResult{
		{Image: "http://img/a.jpg"},
		{Image: "http://img/b.jpg"},
		{Image: "http://img/c.jpg"},
	})

	candidates, err := client.Search(context.Background(), "tiger")

	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestSearchSkipsResultsWithoutImageURL(t *testing.T) {
	client := newTestClient(5)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	mockTokenPage(`vqd="3-1"`)
	mockImageResults([]ddgImageResult{
		{Image: "", Title: "broken"},
		{Image: "http://img/b.jpg", Title: "B"},
	})

	candidates, err := client.Search(context.Background(), "tiger")

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "http://img/b.jpg", candidates[0].URL)
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	client := newTestClient(5)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	mockTokenPage(`vqd="3-1"`)
	mockImageResults(nil)

	candidates, err := client.Search(context.Background(), "xzqy nonsense")

	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearchTokenPageMissingToken(t *testing.T) {
	client := newTestClient(5)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	mockTokenPage(`<html><body>no token here</body></html>`)

	_, err := client.Search(context.Background(), "tiger")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearchTokenPageServerError(t *testing.T) {
	client := newTestClient(5)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", ddgHomeURL,
		httpmock.NewStringResponder(500, "internal error"))

	_, err := client.Search(context.Background(), "tiger")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearchImageEndpointServerError(t *testing.T) {
	client := newTestClient(5)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	mockTokenPage(`vqd="3-1"`)
	httpmock.RegisterResponder("GET", ddgImagesURL,
		httpmock.NewStringResponder(403, "forbidden"))

	_, err := client.Search(context.Background(), "tiger")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearchUndecodableImageResponse(t *testing.T) {
	client := newTestClient(5)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	mockTokenPage(`vqd="3-1"`)
	httpmock.RegisterResponder("GET", ddgImagesURL,
		httpmock.NewStringResponder(200, "<html>bot check</html>"))

	_, err := client.Search(context.Background(), "tiger")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVqdPatternVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"double_quoted", `vqd="3-12345"`, "3-12345"},
		{"single_quoted", `vqd='3-12345'`, "3-12345"},
		{"unquoted", `vqd=3-12345&kl=us-en`, "3-12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := vqdPattern.FindStringSubmatch(tt.body)
			require.NotNil(t, match)
			assert.Equal(t, tt.want, match[1])
		})
	}
}
