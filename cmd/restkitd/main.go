// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package restkitd provides the restkit REST daemon.  It publishes the
// registered resource classes over HTTP with digest authentication,
// backed by an in-memory or PostgreSQL store.
package main

import (
	"flag"
	"io/ioutil"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/firstflamingo/restkit/backend"
	"github.com/firstflamingo/restkit/bulletin"
	"github.com/firstflamingo/restkit/digest"
	"github.com/firstflamingo/restkit/pgstore"
	"github.com/firstflamingo/restkit/principal"
	"github.com/firstflamingo/restkit/restserver"
)

// config is the daemon's YAML configuration file.
type config struct {
	// Realm is the digest authentication realm.  Changing it
	// invalidates every stored secret.
	Realm string `yaml:"realm"`

	// OpaqueSalt is mixed into challenge opaque values.  All daemons
	// answering for the same realm must share it.
	OpaqueSalt string `yaml:"opaque_salt"`

	// Root is the leading URL path segment, for instance "/api".
	Root string `yaml:"root"`
}

func main() {
	var err error

	httpBind := flag.String("http", ":5980",
		"[ip]:port for HTTP REST interface")
	storage := backend.Backend{Implementation: "memory", Address: ""}
	flag.Var(&storage, "backend", "impl[:address] of the storage backend")
	configFile := flag.String("config", "", "configuration YAML file")
	logRequests := flag.Bool("log-requests", false, "log all requests")
	flag.Parse()

	cfg := config{Realm: "restkit", Root: "/api"}
	if *configFile != "" {
		if err = loadConfigYaml(*configFile, &cfg); err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Fatal("Could not load YAML configuration")
			return
		}
	}

	pgstore.Register(&principal.Principal{})
	pgstore.Register(&bulletin.Bulletin{})

	store, err := storage.Store()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Could not create storage backend")
		return
	}

	users := principal.Class(cfg.Realm)
	auth := digest.New(cfg.Realm, principal.Secrets(store, users))
	auth.Salt = cfg.OpaqueSalt

	api := restserver.New(store, auth, cfg.Root)
	if err = api.Register(users); err != nil {
		logrus.WithFields(logrus.Fields{"err": err}).Fatal("Bad class definition")
		return
	}
	if err = api.Register(bulletin.Class()); err != nil {
		logrus.WithFields(logrus.Fields{"err": err}).Fatal("Bad class definition")
		return
	}

	if *logRequests {
		stdlog := logrus.StandardLogger()
		api.Logger = &logrus.Logger{
			Out:       stdlog.Out,
			Formatter: stdlog.Formatter,
			Hooks:     stdlog.Hooks,
			Level:     logrus.DebugLevel,
		}
	}

	err = ServeHTTP(api, *httpBind)
	logrus.WithFields(logrus.Fields{
		"err": err,
	}).Fatal("HTTP server stopped")
}

func loadConfigYaml(filename string, cfg *config) error {
	bytes, err := ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, cfg)
	}
	return err
}
