// Command heartwoodd runs a session manager loop over the configured
// bootstrap peers, applying the fetch protocol's reconnect/backoff state
// machine. Daemon supervision and the concrete network transport are out of
// the core's scope (spec.md Non-goals); this wires fetch.Session to a
// config-driven peer list and a stub dialer.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/pkg/config"
	"github.com/nodeforge/heartwood/pkg/utils"
)

func main() {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(utils.EnvOrDefault("HEARTWOOD_LOG_LEVEL", "info")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	peers := make([]crypto.PublicKey, 0, len(cfg.Node.BootstrapPeers))
	for _, hexKey := range cfg.Node.BootstrapPeers {
		pk, err := crypto.PublicKeyFromHex(hexKey)
		if err != nil {
			log.WithError(err).WithField("peer", hexKey).Warn("skipping malformed bootstrap peer")
			continue
		}
		peers = append(peers, pk)
	}

	manager := NewSessionManager(peers, stubDialer, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("peers", len(peers)).Info("heartwoodd session manager starting")
	manager.Run(ctx, 5*time.Second)
	log.Info("heartwoodd shutting down")
}

// stubDialer always reports failure: this binary supplies the session
// lifecycle wiring, not a concrete network transport.
func stubDialer(ctx context.Context, peer crypto.PublicKey) error {
	return errors.New("no transport configured")
}
