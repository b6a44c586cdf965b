package netx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadToPresignedURL_Success(t *testing.T) {
	var gotBody []byte
	var gotCT, gotMethod string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	err := UploadToPresignedURL(context.Background(), ts.Client(), ts.URL+"/bucket/key", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "image/png", gotCT)
	assert.Equal(t, []byte("png"), gotBody)
}

func TestUploadToPresignedURL_DefaultContentType(t *testing.T) {
	var gotCT string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
	}))
	defer ts.Close()

	require.NoError(t, UploadToPresignedURL(context.Background(), nil, ts.URL, "", []byte("x")))
	assert.Equal(t, "application/octet-stream", gotCT)
}

func TestUploadToPresignedURL_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("SignatureDoesNotMatch"))
	}))
	defer ts.Close()

	err := UploadToPresignedURL(context.Background(), ts.Client(), ts.URL, "", []byte("x"))
	var ue *UploadError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusForbidden, ue.Status)
	assert.Contains(t, ue.Body, "SignatureDoesNotMatch")
}

func TestUploadToPresignedURL_BadURL(t *testing.T) {
	err := UploadToPresignedURL(context.Background(), nil, "://bad", "", nil)
	require.Error(t, err)
}
