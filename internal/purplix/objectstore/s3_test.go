package objectstore_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/purplix/backend/internal/purplix/objectstore"
	"github.com/stretchr/testify/require"
)

func TestS3Put(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		ctype  string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, ctype, body = r.Method, r.URL.Path, r.Header.Get("Content-Type"), b
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
	}))
	t.Cleanup(srv.Close)

	s, err := objectstore.NewS3(context.Background(), objectstore.Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "assets",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		Folder:          "purplix",
		PublicURL:       "https://cdn.example.com/",
	})
	require.NoError(t, err)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	err = s.Put(context.Background(), "canary/logo.png", bytes.NewReader(png), int64(len(png)), "image/png")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/assets/purplix/canary/logo.png", path)
	require.Equal(t, "image/png", ctype)
	require.True(t, bytes.HasSuffix(body, []byte("0000")) || strings.Contains(string(body), "0000"))

	require.Equal(t, "https://cdn.example.com/purplix/canary/logo.png", s.URL("canary/logo.png"))
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := objectstore.NewS3(context.Background(), objectstore.Config{})
	require.Error(t, err)
}

func TestSniffImage(t *testing.T) {
	ct, ext, ok := objectstore.SniffImage([]byte("\x89PNG\r\n\x1a\nrest"))
	require.True(t, ok)
	require.Equal(t, "image/png", ct)
	require.Equal(t, ".png", ext)

	_, ext, ok = objectstore.SniffImage([]byte("\xff\xd8\xffrest"))
	require.True(t, ok)
	require.Equal(t, ".jpg", ext)

	_, _, ok = objectstore.SniffImage([]byte("<svg xmlns=\"http://www.w3.org/2000/svg\"></svg>"))
	require.False(t, ok)
}
