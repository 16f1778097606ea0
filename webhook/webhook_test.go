package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverSigned(t *testing.T) {
	var (
		gotSig  string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := &Event{Type: EventRunCompleted, RunID: "run-1", Timestamp: 1, Data: map[string]int{"failed": 2}}
	require.NoError(t, New(srv.URL, "s3cret").Deliver(context.Background(), ev))

	var decoded Event
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, EventRunCompleted, decoded.Type)
	assert.Equal(t, "sha256="+Sign("s3cret", gotBody), gotSig)
}

func TestDeliverUnsigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "").Deliver(context.Background(), &Event{Type: EventRunFailed}))
}

func TestDeliverClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New(srv.URL, "").Deliver(context.Background(), &Event{Type: EventRunFailed})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSign(t *testing.T) {
	assert.Len(t, Sign("key", []byte("body")), 64)
	assert.NotEqual(t, Sign("key", []byte("body")), Sign("other", []byte("body")))
}
