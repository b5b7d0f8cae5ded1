package smoketest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

const (
	defaultTimeout = 30 * time.Second

	ErrTypeSmokeTestFailed = "smoke-test-failed"
)

type Options struct {
	Endpoint   string
	UserAgent  string
	Transport  http.RoundTripper
	SendResult func(context.Context, Results) error
}

// Request asks the server to fetch a tree mesh from another arbor endpoint.
type Request struct {
	Endpoint string        `json:"endpoint"`
	Seed     uint64        `json:"seed"`
	Timeout  time.Duration `json:"timeout"`
}

type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Seed            uint64  `json:"seed"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Vertices        int     `json:"vertices"`
	Triangles       int     `json:"triangles"`
	Error           string  `json:"error,omitempty"`
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading body failed", http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil || req.Endpoint == "" {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		go func() {
			defer func() {
				// if context is of testContext
				// cancel context on exit to signal function exited
				// this is used for testing
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := RunSmokeTest(ctx, opts, req)
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// RunSmokeTest downloads the mesh of the requested tree and counts its
// vertices and triangles.
func RunSmokeTest(ctx context.Context, opts Options, req Request) (Results, error) {
	res := Results{
		FromEndpoint: opts.Endpoint,
		ToEndpoint:   req.Endpoint,
		Seed:         req.Seed,
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/trees/%d/mesh.obj", strings.TrimSuffix(req.Endpoint, "/"), req.Seed)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failed(res, errors.New("creating smoke test request failed").Wrap(err))
	}
	if opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", opts.UserAgent)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client := http.Client{Transport: transport}

	start := time.Now()
	httpRes, err := client.Do(httpReq)
	if err != nil {
		return failed(res, errors.New("fetching tree mesh failed").
			WithTag("url", url).
			Wrap(err))
	}
	defer httpRes.Body.Close()

	if httpRes.StatusCode != http.StatusOK {
		return failed(res, errors.New("unexpected status code").
			WithTag("url", url).
			WithTag("status_code", httpRes.StatusCode))
	}

	scanner := bufio.NewScanner(httpRes.Body)
	for scanner.Scan() {
		switch line := scanner.Text(); {
		case strings.HasPrefix(line, "v "):
			res.Vertices++
		case strings.HasPrefix(line, "f "):
			res.Triangles++
		}
	}
	res.LatencyMilliSec = float64(time.Since(start)) / float64(time.Millisecond)

	if err := scanner.Err(); err != nil {
		return failed(res, errors.New("reading tree mesh failed").
			WithTag("url", url).
			Wrap(err))
	}
	if res.Vertices == 0 {
		return failed(res, errors.New("empty tree mesh").WithTag("url", url))
	}
	return res, nil
}

func failed(res Results, err error) (Results, error) {
	res.Error = err.Error()
	return res, errors.New("smoke test failed").
		WithType(ErrTypeSmokeTestFailed).
		WithTag("to_endpoint", res.ToEndpoint).
		Wrap(err)
}
