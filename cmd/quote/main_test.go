package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niksmo/repair-shop/internal/adapter/catalog"
)

const a32Records = `[
{"id":"0b6f1f8e-4b0b-4c1e-9a33-0f0f0e5c6a01","brand":"Samsung","model":"A32",
 "attributes":{"color":"Negro","frame":"Con marco"},"prices":{"moduleRepair":"45000"}},
{"id":"0b6f1f8e-4b0b-4c1e-9a33-0f0f0e5c6a02","brand":"Samsung","model":"A32",
 "attributes":{"color":"Negro","frame":"Sin marco"},"prices":{"moduleRepair":"38000.5"}},
{"id":"0b6f1f8e-4b0b-4c1e-9a33-0f0f0e5c6a03","brand":"Samsung","model":"A32",
 "attributes":{"color":"Azul","frame":"Sin marco"},"prices":{}}
]`

func newCatalog(t *testing.T, h http.HandlerFunc) *catalog.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cl, err := catalog.New(catalog.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return cl
}

func TestRunQuote(t *testing.T) {
	cl := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(a32Records))
	})

	t.Run("Partial", func(t *testing.T) {
		var out bytes.Buffer
		f := flags{brand: "Samsung", model: "A32", selection: map[string]string{
			"color": "Negro",
		}}

		require.NoError(t, runQuote(context.Background(), cl, f, &out))

		assert.Contains(t, out.String(), "Samsung A32: 3 records, partial")
		assert.Contains(t, out.String(), "Con marco | Sin marco")
		assert.NotContains(t, out.String(), "wa.me")
	})

	t.Run("Resolved", func(t *testing.T) {
		var out bytes.Buffer
		f := flags{brand: "Samsung", model: "A32", phone: "+54 9 11 5555-0000",
			selection: map[string]string{"color": "Negro", "frame": "Sin marco"}}

		require.NoError(t, runQuote(context.Background(), cl, f, &out))

		assert.Contains(t, out.String(), "$38000.50")
		assert.Contains(t, out.String(), "https://wa.me/5491155550000?text=")
		assert.Contains(t, out.String(), "Sin presupuesto")
	})

	t.Run("UnknownAttribute", func(t *testing.T) {
		f := flags{brand: "Samsung", model: "A32", selection: map[string]string{
			"shape": "round",
		}}
		err := runQuote(context.Background(), cl, f, &bytes.Buffer{})
		assert.ErrorContains(t, err, "shape")
	})
}

func TestRunSearchDebounced(t *testing.T) {
	var (
		mu    sync.Mutex
		terms []string
	)
	cl := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		terms = append(terms, r.URL.Query().Get("q"))
		mu.Unlock()
		_, _ = w.Write([]byte(a32Records))
	})

	var out bytes.Buffer
	in := strings.NewReader("sa\nsam\n\nsamsung a3\n")

	require.NoError(t, runSearch(context.Background(), cl, in, &out))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"samsung a3"}, terms)
	assert.Contains(t, out.String(), `"samsung a3":`)
	assert.Contains(t, out.String(), "Samsung A32 Negro, Con marco")
}
