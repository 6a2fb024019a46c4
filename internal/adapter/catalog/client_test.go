package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niksmo/repair-shop/internal/adapter/catalog"
	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/pkg/retry"
)

func newClient(t *testing.T, h http.HandlerFunc, cfg catalog.Config) *catalog.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL + "/"
	if cfg.Retry.Backoff == nil {
		cfg.Retry.Backoff = retry.LinearBackoff(time.Millisecond)
	}
	c, err := catalog.New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := catalog.New(catalog.Config{BaseURL: "catalog.local"})
	assert.Error(t, err)
}

func TestBrands(t *testing.T) {
	var token string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/brands", r.URL.Path)
		token = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`["Motorola","Samsung"]`))
	}, catalog.Config{
		Authorize: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer secret")
		},
	})

	brands, err := c.Brands(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"Motorola", "Samsung"}, brands)
	assert.Equal(t, "Bearer secret", token)
}

func TestModelsEscapesBrand(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/brands/LG%20Electronics/models", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`["K52"]`))
	}, catalog.Config{})

	models, err := c.Models(context.Background(), "LG Electronics")

	require.NoError(t, err)
	assert.Equal(t, []string{"K52"}, models)
}

func TestRecords(t *testing.T) {
	id := gofakeit.UUID()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Samsung", r.URL.Query().Get("brand"))
		assert.Equal(t, "A32", r.URL.Query().Get("model"))
		_, _ = w.Write([]byte(`[{"id":"` + id + `","brand":"Samsung","model":"A32",` +
			`"attributes":{"color":"Negro","type":"","shape":"round"},` +
			`"prices":{"moduleRepair":"45000","screen":"1"}}]`))
	}, catalog.Config{})

	rs, err := c.Records(context.Background(), "Samsung", "A32")

	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, id, rs[0].ID)
	assert.Equal(t, domain.Attributes{domain.AttrColor: "Negro"}, rs[0].Attributes)
	require.Len(t, rs[0].Prices, 1)
	assert.Equal(t, "45000", rs[0].Prices[domain.PriceModuleRepair].String())
}

func TestSearch(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/records/search", r.URL.Path)
		assert.Equal(t, "gal s2", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[]`))
	}, catalog.Config{})

	rs, err := c.Search(context.Background(), "gal s2")

	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestErrors(t *testing.T) {
	t.Run("Unauthorized", func(t *testing.T) {
		var calls atomic.Int32
		var callbacks int
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}, catalog.Config{
			OnUnauthorized: func() { callbacks++ },
			Retry:          retry.RetryConfig{MaxAttempts: 3},
		})

		_, err := c.Brands(context.Background())

		assert.ErrorIs(t, err, catalog.ErrUnauthorized)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 1, callbacks)
	})

	t.Run("NotFound", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, catalog.Config{})

		_, err := c.Models(context.Background(), "Nokia")

		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("BadRequest", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "empty term", http.StatusBadRequest)
		}, catalog.Config{})

		_, err := c.Search(context.Background(), "")

		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.ErrorContains(t, err, "empty term")
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls atomic.Int32
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`["Apple"]`))
		}, catalog.Config{Retry: retry.RetryConfig{MaxAttempts: 3}})

		brands, err := c.Brands(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"Apple"}, brands)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("Unavailable", func(t *testing.T) {
		var calls atomic.Int32
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}, catalog.Config{Retry: retry.RetryConfig{MaxAttempts: 2}})

		_, err := c.Brands(context.Background())

		assert.ErrorIs(t, err, catalog.ErrUnavailable)
		assert.Equal(t, int32(2), calls.Load())
	})
}
