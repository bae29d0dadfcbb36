package pushclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesURL(t *testing.T) {
	_, err := New("", "", time.Second)
	assert.Error(t, err)

	_, err = New("127.0.0.1:8080", "", time.Second)
	assert.Error(t, err, "scheme is required")

	_, err = New("http://127.0.0.1:8080/", "", time.Second)
	assert.NoError(t, err)
}

func TestWakeSendsTokenAndMagic(t *testing.T) {
	var gotPath, gotToken string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("API-TOKEN")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "secret-token", time.Second)
	require.NoError(t, err)

	err = client.Wake(context.Background(), []byte{0xde, 0xad, 0xbe, 0xef}, "magic-1")
	require.NoError(t, err)
	assert.Equal(t, "/push", gotPath)
	assert.Equal(t, "secret-token", gotToken)
	assert.Equal(t, "deadbeef", gotBody["push_token"])
	assert.Equal(t, "magic-1", gotBody["push_magic"])
}

func TestWakeRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "", time.Second)
	require.NoError(t, err)

	err = client.Wake(context.Background(), []byte{0x01}, "magic")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "", time.Second)
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()))
}
