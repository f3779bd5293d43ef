package directory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelerdir/internal/directory"
)

func serve(t *testing.T, status int, body string) *directory.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return directory.NewClient(srv.URL+"/xrpc/blue.feeds.mod.getLabellers", srv.Client(), "")
}

func TestListLabelers_KeepsOrder(t *testing.T) {
	c := serve(t, http.StatusOK, `{"labellers":[
		{"did":"did:plc:c","name":"third"},
		{"did":"did:plc:a"},
		{"did":""},
		{"did":"did:plc:b"},
		{"did":"did:plc:a"}
	]}`)

	dids, err := c.ListLabelers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"did:plc:c", "did:plc:a", "did:plc:b", "did:plc:a"}, dids)
}

func TestListLabelers_Empty(t *testing.T) {
	c := serve(t, http.StatusOK, `{"labellers":[]}`)

	dids, err := c.ListLabelers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dids)
}

func TestListLabelers_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"malformed json", http.StatusOK, `{"labellers":[`},
		{"missing field", http.StatusOK, `{"feeds":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, tt.status, tt.body)

			_, err := c.ListLabelers(context.Background())
			var fetchErr *directory.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.status, fetchErr.StatusCode)
		})
	}
}

func TestListLabelers_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := directory.NewClient(url, nil, "")
	_, err := c.ListLabelers(context.Background())

	var fetchErr *directory.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.Error(t, fetchErr.Err)
}
