// Package tlsreload keeps a *tls.Config serving a certificate pair that is
// periodically reloaded from disk, so a renewed certificate takes effect
// without restarting the listener.
package tlsreload

import (
	"crypto/tls"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	reloadInterval   = 24 * time.Hour
	reloadRetryStart = 1 * time.Minute
	reloadRetryMax   = 1 * time.Hour
)

// Reloader owns a hot-swappable certificate loaded from a private key and
// certificate chain on disk, reloaded on a ticker in the background.
//
// Go's crypto/tls already calls GetCertificate once per handshake, so
// unlike an accept-time check, no per-connection staleness test is needed
// here: the ticker simply keeps the held certificate fresh between reads.
type Reloader struct {
	certPath, keyPath string
	cert              atomic.Pointer[tls.Certificate]
	stop              chan struct{}
}

// New loads the initial certificate and starts the background reload loop.
func New(certPath, keyPath string) (*Reloader, error) {
	r := &Reloader{certPath: certPath, keyPath: keyPath, stop: make(chan struct{})}
	if err := r.reload(); err != nil {
		return nil, err
	}
	go r.loop()
	return r, nil
}

// TLSConfig returns a *tls.Config whose GetCertificate always returns the
// most recently loaded certificate.
func (r *Reloader) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return r.cert.Load(), nil
		},
	}
}

// Close stops the background reload loop.
func (r *Reloader) Close() {
	close(r.stop)
}

func (r *Reloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate %s / key %s: %w", r.certPath, r.keyPath, err)
	}
	r.cert.Store(&cert)
	return nil
}

func (r *Reloader) loop() {
	delay := reloadInterval
	for {
		select {
		case <-r.stop:
			return
		case <-time.After(delay):
			log.Info().Str("certificate", r.certPath).Str("key", r.keyPath).Msg("reloading TLS certificate")
			if err := r.reload(); err != nil {
				log.Error().Err(err).Msg("TLS certificate reload failed")
				delay = nextRetryDelay(delay)
				continue
			}
			delay = reloadInterval
		}
	}
}

func nextRetryDelay(previous time.Duration) time.Duration {
	if previous >= reloadInterval {
		return reloadRetryStart
	}
	next := previous * 2
	if next > reloadRetryMax {
		return reloadRetryMax
	}
	return next
}
