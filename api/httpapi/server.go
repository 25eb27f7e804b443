// Package httpapi serves the attestation JSON API over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"echorank.dev/attest/archive"
	"echorank.dev/attest/attest"
	"echorank.dev/attest/metrics"
)

// DefaultMaxUploadBytes bounds a request body when Options leaves it unset.
const DefaultMaxUploadBytes = 32 << 20

type Options struct {
	Attestor *attest.Attestor
	// Archive enables GET /v1/attestations/:message_hash when set.
	Archive *archive.Sink
	Metrics *metrics.Collectors
	// Gatherer backs GET /metrics. The endpoint is omitted when nil.
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
	MaxUploadBytes int64
	Now            func() time.Time
}

type handler struct {
	attestor  *attest.Attestor
	archive   *archive.Sink
	maxUpload int64
	now       func() time.Time
	log       *zap.Logger
}

// NewRouter returns the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handler{
		attestor:  opts.Attestor,
		archive:   opts.Archive,
		maxUpload: opts.MaxUploadBytes,
		now:       opts.Now,
		log:       opts.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), observe(opts.Metrics, opts.Logger))
	r.MaxMultipartMemory = opts.MaxUploadBytes

	r.GET("/health", h.health)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.GET("/public-key", h.publicKey)
	v1.POST("/attest", h.attest)
	v1.POST("/verify", h.verify)
	v1.POST("/verify-aggregate", h.verifyAggregate)
	// Registrations are capped by the attestor's registry; the route has no
	// authentication of its own and belongs behind the operator's network edge.
	v1.POST("/keys", h.registerKey)
	if opts.Archive != nil {
		v1.GET("/attestations/:message_hash", h.getAttestation)
	}
	return r
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
