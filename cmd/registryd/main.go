// Command registryd serves a palletizer registry over HTTP(S): the Cargo
// Web API, raw crate downloads, and the git smart HTTP index transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palletizer/registry/internal/config"
	"github.com/palletizer/registry/internal/httpapi"
	"github.com/palletizer/registry/internal/logging"
	"github.com/palletizer/registry/internal/metadatacache"
	"github.com/palletizer/registry/internal/registry"
	"github.com/palletizer/registry/internal/tlsreload"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := flag.String("root", ".", "registry root directory")
	flag.Parse()

	reg, err := registry.Open(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open registry at %s: %v\n", *root, err)
		return 1
	}

	logging.Setup(reg.Config().Logging)
	log.Info().Str("root", reg.Path()).Msg("opened registry")

	describer, err := newDescriber(reg.Config())
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metadata cache, descriptions will be empty")
	}
	if describer != nil {
		defer describer.Close()
	}

	router := httpapi.NewRouter(reg, describer)

	listeners := reg.Config().Listener
	if len(listeners) == 0 {
		listeners = []config.Listener{{Bind: "0.0.0.0:8080"}}
	}

	servers := make([]*http.Server, 0, len(listeners))
	reloaders := make([]*tlsreload.Reloader, 0, len(listeners))
	var wg sync.WaitGroup
	errCh := make(chan error, len(listeners))

	for _, l := range listeners {
		server := &http.Server{
			Addr:         l.Bind,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		if l.TLS != nil {
			reloader, err := tlsreload.New(l.TLS.CertificateChain, l.TLS.PrivateKey)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load TLS material for %s: %v\n", l.Bind, err)
				return 1
			}
			reloaders = append(reloaders, reloader)
			server.TLSConfig = reloader.TLSConfig()
		}

		servers = append(servers, server)
		wg.Add(1)
		go func(server *http.Server, tlsEnabled bool) {
			defer wg.Done()
			log.Info().Str("addr", server.Addr).Bool("tls", tlsEnabled).Msg("starting listener")
			var err error
			if tlsEnabled {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("listener %s failed: %w", server.Addr, err)
			}
		}(server, l.TLS != nil)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("listener failed, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exitCode := 0
	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Str("addr", server.Addr).Msg("graceful shutdown failed")
			exitCode = 1
		}
	}
	for _, reloader := range reloaders {
		reloader.Close()
	}

	wg.Wait()
	return exitCode
}

func newDescriber(cfg *config.Config) (*metadatacache.Describer, error) {
	mc := cfg.MetadataCache
	if mc == nil {
		return metadatacache.NewDescriber(metadatacache.Config{Driver: metadatacache.DriverSQLite, DSN: "palletizer-metadata.db"})
	}
	return metadatacache.NewDescriber(metadatacache.Config{
		Driver:        metadatacache.Driver(mc.Driver),
		DSN:           mc.DSN,
		RedisAddr:     mc.RedisAddr,
		RedisPassword: mc.RedisPassword,
		RedisDB:       mc.RedisDB,
	})
}
