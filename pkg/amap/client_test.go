package amap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "cafe", r.URL.Query().Get("keywords"))
		assert.Equal(t, "2", r.URL.Query().Get("page_num"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "1", "info": "OK", "infocode": "10000", "count": "42",
			"pois": [{"id": "B001", "name": "Cafe One"}, {"id": "B002", "name": "Cafe Two"}]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	params := url.Values{}
	params.Set("keywords", "cafe")
	params.Set("page_num", "2")

	resp, err := c.Search(context.Background(), EndpointText, params)
	require.NoError(t, err)
	require.Len(t, resp.POIs, 2)
	assert.Equal(t, "B001", resp.POIs[0]["id"])

	count, ok := resp.ReportedCount()
	assert.True(t, ok)
	assert.Equal(t, 42, count)
}

func TestSearch_RateLimitedInfoCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "0", "info": "CUQPS_HAS_EXCEEDED_THE_LIMIT", "infocode": "10009"}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), EndpointPolygon, url.Values{})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsQuotaExhausted(err))
}

func TestSearch_QuotaExhausted(t *testing.T) {
	// Quota exhaustion arrives with status "1" on some routes.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "1", "info": "USER_DAILY_QUERY_OVER_LIMIT", "infocode": "10044"}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), EndpointText, url.Values{})
	require.Error(t, err)
	assert.True(t, IsQuotaExhausted(err))
	assert.False(t, IsRateLimited(err))
}

func TestSearch_InvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "0", "info": "INVALID_USER_KEY", "infocode": "10001"}`))
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), EndpointText, url.Values{})
	require.Error(t, err)
	assert.True(t, IsInvalidKey(err))
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), EndpointAround, url.Values{})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err), "5xx responses are retryable")
}

func TestSearch_MissingPOIsFieldIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "1", "info": "OK", "infocode": "10000", "count": "0"}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	resp, err := c.Search(context.Background(), EndpointText, url.Values{})
	require.NoError(t, err)
	assert.Nil(t, resp.POIs, "absent pois must decode to nil for malformed detection")
}

func TestReportedCount_Unparseable(t *testing.T) {
	r := &Response{Count: "many"}
	_, ok := r.ReportedCount()
	assert.False(t, ok)

	r = &Response{}
	_, ok = r.ReportedCount()
	assert.False(t, ok)
}
