package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirecrawlClient_FetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.URLs, 1)
		assert.Equal(t, "https://example.com", req.URLs[0])

		yes := true
		json.NewEncoder(w).Encode(extractResponse{
			Success: true,
			Data: &StructuredData{
				BusinessDetails:    "Sells handmade candles",
				ShippingIncentives: "Free shipping on orders over $75",
				HasFreeShipping:    &yes,
				DeliveryTimeframe:  "3-5 business days",
			},
		})
	}))
	defer srv.Close()

	c := NewFirecrawlClient("test-key", srv.URL, nil)
	content, err := c.Fetch(context.Background(), "example.com")
	require.NoError(t, err)
	require.NotNil(t, content.Structured)
	assert.Equal(t, "Free shipping on orders over $75", content.Structured.ShippingIncentives)
	assert.Contains(t, content.Text, "handmade candles")
	assert.False(t, content.Empty())
}

func TestFirecrawlClient_UnsuccessfulDegradesGracefully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{Success: false, Error: "site blocked us"})
	}))
	defer srv.Close()

	c := NewFirecrawlClient("test-key", srv.URL, nil)
	content, err := c.Fetch(context.Background(), "example.com")
	require.NoError(t, err)
	require.NotNil(t, content.Structured)
	assert.True(t, content.Empty())
}

func TestFirecrawlClient_TransportErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewFirecrawlClient("test-key", srv.URL, nil)
	_, err := c.Fetch(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrAcquisition)
}
