// Package httpclient builds the outbound HTTP client used by remote encoders.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

func DefaultOptions(timeout time.Duration) Options {
	return Options{
		Timeout:         timeout,
		MaxIdleConns:    10,
		IdleConnTimeout: 120 * time.Second,
	}
}

// New returns a client with its own connection pool for a single upstream.
// Each request becomes a client span under the caller's embed span.
func New(opts Options) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConns,
		IdleConnTimeout:     opts.IdleConnTimeout,
	}

	otelOpts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "encoder " + r.Method + " " + r.URL.Path
		}),
	}
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: otelhttp.NewTransport(base, otelOpts...),
	}
}
