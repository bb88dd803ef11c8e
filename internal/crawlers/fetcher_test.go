package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHeaders http.Header

func (h staticHeaders) GetHeaders() (http.Header, error) {
	return http.Header(h), nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="/a">A</a></body></html>`))
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("User-Agent") + "|" + r.Header.Get("X-Test")))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte("gzip正文"))
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/br", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte("brotli正文"))
		_ = bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/br-html", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(`<html><body><h1>brotli页面</h1></body></html>`))
		_ = bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_Success(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(time.Second, nil)

	page, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.HTML(), `href="/a"`)
	assert.Equal(t, srv.URL+"/ok", page.BaseURL())
}

func TestHTTPFetcher_Headers(t *testing.T) {
	srv := newTestServer(t)

	page, err := NewHTTPFetcher(time.Second, nil).Fetch(context.Background(), srv.URL+"/ua")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent+"|", page.HTML())

	provider := staticHeaders{"User-Agent": {"custom-agent"}, "X-Test": {"1"}}
	page, err = NewHTTPFetcher(time.Second, provider).Fetch(context.Background(), srv.URL+"/ua")
	require.NoError(t, err)
	assert.Equal(t, "custom-agent|1", page.HTML())
}

func TestHTTPFetcher_Decoding(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(time.Second, nil)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"gzip压缩", "/gzip", "gzip正文"},
		{"brotli压缩", "/br", "brotli正文"},
		{"latin1转UTF-8", "/latin1", "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.Fetch(context.Background(), srv.URL+tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.HTML())
		})
	}
}

func TestHTTPFetcher_NonSuccessStatus(t *testing.T) {
	srv := newTestServer(t)

	_, err := NewHTTPFetcher(time.Second, nil).Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.ErrorIs(t, err, ErrNonSuccessStatus)
	assert.False(t, fe.Temporary(), "404不应重试")
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	srv := newTestServer(t)

	start := time.Now()
	_, err := NewHTTPFetcher(100*time.Millisecond, nil).Fetch(context.Background(), srv.URL+"/slow")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Temporary(), "超时应视为瞬时错误")
	assert.False(t, IsCancelled(context.Background(), err), "单次请求超时不是取消")
}

func TestHTTPFetcher_Cancelled(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPFetcher(time.Second, nil).Fetch(ctx, srv.URL+"/ok")
	require.Error(t, err)
	assert.True(t, IsCancelled(ctx, err))
	assert.False(t, IsCancelled(ctx, nil))
}

func TestCollyFetcher(t *testing.T) {
	srv := newTestServer(t)
	f := NewCollyFetcher(time.Second, staticHeaders{"X-Test": {"colly"}})

	page, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Contains(t, page.HTML(), `href="/a"`)

	page, err = f.Fetch(context.Background(), srv.URL+"/ua")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent+"|colly", page.HTML())

	page, err = f.Fetch(context.Background(), srv.URL+"/br")
	require.NoError(t, err)
	assert.Equal(t, "brotli正文", page.HTML())

	// 未声明字符集的brotli页面
	page, err = f.Fetch(context.Background(), srv.URL+"/br-html")
	require.NoError(t, err)
	assert.Contains(t, page.HTML(), "<h1>brotli页面</h1>")

	page, err = f.Fetch(context.Background(), srv.URL+"/latin1")
	require.NoError(t, err)
	assert.Equal(t, "café", page.HTML())

	page, err = f.Fetch(context.Background(), srv.URL+"/gzip")
	require.NoError(t, err)
	assert.Equal(t, "gzip正文", page.HTML())

	// 同一URL可重复获取
	_, err = f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestFetchError_Temporary(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want bool
	}{
		{"503", newStatusError("u", 503), true},
		{"429", newStatusError("u", 429), true},
		{"404", newStatusError("u", 404), false},
		{"超时", &FetchError{URL: "u", Err: context.DeadlineExceeded}, true},
		{"取消", &FetchError{URL: "u", Err: context.Canceled}, false},
		{"连接重置", &FetchError{URL: "u", Err: errors.New("read: connection reset by peer")}, true},
		{"其他错误", &FetchError{URL: "u", Err: errors.New("boom")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Temporary())
		})
	}
}

func TestDecompressResponse_Unsupported(t *testing.T) {
	_, err := decompressResponse("zstd", []byte("x"))
	assert.Error(t, err)

	out, err := decompressResponse("", []byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(out))
}
