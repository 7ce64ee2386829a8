package sifen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCDC = "01800695631001001000000120260831100000000017"

func TestSubmitAccepted(t *testing.T) {
	var gotAuth, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		fmt.Fprintf(w, `{"code":"0","message":"Aprobado","cdc":%q,"protocol_id":"756123","verification_url":"https://example.test/verify"}`, testCDC)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret-key", time.Second)
	result, err := client.Submit(context.Background(), []byte(`{"doc":1}`))
	require.NoError(t, err)

	assert.Equal(t, testCDC, result.CDC)
	assert.Equal(t, "756123", result.ProtocolID)
	assert.Equal(t, "https://example.test/verify", result.VerificationURL)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, `{"doc":1}`, gotBody)
}

func TestSubmitDerivesVerificationURLFromCDC(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":"05","message":"Aprobado con observaciones","cdc":%q,"protocol_id":"756124"}`, testCDC)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", time.Second)
	result, err := client.Submit(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "https://ekuatia.set.gov.py/consultas/qr?cdc="+testCDC, result.VerificationURL)
}

func TestSubmitRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"160","message":"RUC del receptor inexistente"}`)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", time.Second)
	_, err := client.Submit(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, ErrGatewayRejected)

	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, "160", rejection.Code)
	assert.Equal(t, "RUC del receptor inexistente", rejection.Message)
}

func TestSubmitUnparseableClientError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "not json")
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", time.Second)
	_, err := client.Submit(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, ErrGatewayRejected)

	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, "HTTP_400", rejection.Code)
}

func TestSubmitServerErrorIsUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", time.Second)
	_, err := client.Submit(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, ErrGatewayUnreachable)
}

func TestSubmitTransportErrorIsUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewClient(ts.URL, "", time.Second)
	_, err := client.Submit(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, ErrGatewayUnreachable)
}
