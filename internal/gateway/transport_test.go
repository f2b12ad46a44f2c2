package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_SendsFormAndBasicAuth(t *testing.T) {
	var (
		gotUser, gotPass string
		gotAuth          bool
		gotService       string
		gotMethod        string
		gotParams        []string
	)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotAuth = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotService = r.PostForm.Get("service")
		gotMethod = r.PostForm.Get("method")
		gotParams = r.PostForm["param"]
		w.Write([]byte(`{"status":200,"payload":[null]}`))
	}))
	defer backend.Close()

	transport, err := NewHTTPTransport(HTTPTransportConfig{
		BaseURL:  backend.URL,
		Username: "circd-svc",
		Password: "s3cret",
	})
	require.NoError(t, err)

	_, err = transport.Invoke(context.Background(), "open-ils.circ", "open-ils.circ.checkout.full",
		[]any{"AUTH", map[string]any{"copy_barcode": "I200"}})
	require.NoError(t, err)

	assert.True(t, gotAuth, "credentials from config must reach the translator")
	assert.Equal(t, "circd-svc", gotUser)
	assert.Equal(t, "s3cret", gotPass)
	assert.Equal(t, "open-ils.circ", gotService)
	assert.Equal(t, "open-ils.circ.checkout.full", gotMethod)
	require.Len(t, gotParams, 2)
	assert.Equal(t, `"AUTH"`, gotParams[0])
}

func TestHTTPTransport_NoAuthHeaderWithoutUsername(t *testing.T) {
	var sawAuth bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, sawAuth = r.BasicAuth()
		w.Write([]byte(`{"status":200,"payload":[null]}`))
	}))
	defer backend.Close()

	transport, err := NewHTTPTransport(HTTPTransportConfig{BaseURL: backend.URL})
	require.NoError(t, err)

	_, err = transport.Invoke(context.Background(), "open-ils.actor", "open-ils.actor.org_unit.full_tree.retrieve", nil)
	require.NoError(t, err)
	assert.False(t, sawAuth)
}

func TestHTTPTransport_NotFoundMapsToMethodNotFound(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer backend.Close()

	transport, err := NewHTTPTransport(HTTPTransportConfig{BaseURL: backend.URL})
	require.NoError(t, err)

	_, err = transport.Invoke(context.Background(), "open-ils.circ", "open-ils.circ.nope", nil)
	assert.ErrorIs(t, err, ErrMethodNotFound)
}
