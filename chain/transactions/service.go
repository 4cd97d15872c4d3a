// Package transactions creates, signs, verifies, fetches and posts
// transactions against a gateway.
package transactions

import (
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/chain/chunks"
	"github.com/arpi-project/arpi/chain/uploader"
	"github.com/arpi-project/arpi/lib/arcache"
	"github.com/arpi-project/arpi/lib/merkle"
	"github.com/arpi-project/arpi/lib/sigs"
)

var log = logging.Logger("transactions")

type Service struct {
	api    api.Gateway
	crypto sigs.Provider
	merkle *merkle.Merkle
	chunks *chunks.Chunks
	cache  *arcache.Cache
	clk    clock.Clock

	anchorTTL    time.Duration
	priceTTL     time.Duration
	pollMin      time.Duration
	pollMax      time.Duration
	uploaderOpts []uploader.Option
}

type Option func(*Service)

// WithCache caches anchors and prices in c.
func WithCache(c *arcache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithCacheTTL(anchor, price time.Duration) Option {
	return func(s *Service) {
		s.anchorTTL = anchor
		s.priceTTL = price
	}
}

func WithChunks(c *chunks.Chunks) Option {
	return func(s *Service) { s.chunks = c }
}

func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clk = clk }
}

// WithPollInterval bounds the backoff of WaitConfirmed.
func WithPollInterval(minWait, maxWait time.Duration) Option {
	return func(s *Service) {
		s.pollMin = minWait
		s.pollMax = maxWait
	}
}

// WithUploaderOptions are passed to every uploader the service creates.
func WithUploaderOptions(opts ...uploader.Option) Option {
	return func(s *Service) { s.uploaderOpts = append(s.uploaderOpts, opts...) }
}

func New(gw api.Gateway, crypto sigs.Provider, opts ...Option) *Service {
	s := &Service{
		api:       gw,
		crypto:    crypto,
		merkle:    merkle.New(crypto),
		clk:       build.Clock,
		anchorTTL: build.AnchorCacheTTL,
		priceTTL:  build.PriceCacheTTL,
		pollMin:   5 * time.Second,
		pollMax:   2 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	if s.chunks == nil {
		s.chunks = chunks.New(gw)
	}
	s.uploaderOpts = append([]uploader.Option{uploader.WithMerkle(s.merkle)}, s.uploaderOpts...)
	return s
}
