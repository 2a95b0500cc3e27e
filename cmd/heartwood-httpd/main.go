// Command heartwood-httpd serves read-only identity and sigrefs JSON over
// HTTP for a single repository. Handler business logic beyond projecting
// storage reads to JSON is out of the core's scope (spec.md Non-goals).
package main

import (
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nodeforge/heartwood/pkg/config"
	"github.com/nodeforge/heartwood/pkg/utils"
	"github.com/nodeforge/heartwood/storage"
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

	home := cfg.Profile.Home
	if home == "" {
		home = "."
	}
	repo, err := storage.Open(home, log)
	if err != nil {
		log.WithError(err).Fatal("open repository")
	}

	addr := cfg.Node.HTTPAddr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	srv := NewServer(repo, log)
	log.Infof("heartwood-httpd listening on %s", addr)
	if err := http.ListenAndServe(addr, srv); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("serve")
	}
	os.Exit(0)
}
