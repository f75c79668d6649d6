// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package restkit-sync provides a maintenance tool that reconciles
// external feeds with a restkit storage backend.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/firstflamingo/restkit/backend"
	"github.com/firstflamingo/restkit/bulletin"
	"github.com/firstflamingo/restkit/pgstore"
	"github.com/firstflamingo/restkit/principal"
	"github.com/firstflamingo/restkit/reconcile"
	"github.com/firstflamingo/restkit/resource"
)

var store resource.Store

var importBulletins = cli.Command{
	Name:  "import",
	Usage: "reconcile a bulletin feed with the backend",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "file",
			Usage: "XML feed file to import",
		},
		cli.BoolFlag{
			Name:  "keep-missing",
			Usage: "keep resources that are absent from the feed",
		},
	},
	Action: func(c *cli.Context) error {
		feed, err := os.Open(c.String("file"))
		if err != nil {
			return err
		}
		defer feed.Close()

		class := bulletin.Class()
		result, err := reconcile.Run(feed, &bulletin.Feed{Store: store})
		if err != nil {
			return err
		}

		for _, obj := range result.Updated {
			if err := store.Put(class, obj); err != nil {
				return err
			}
		}
		removed := 0
		if !c.Bool("keep-missing") {
			for id := range result.Removed {
				if err := store.Delete(class, id); err != nil {
					return err
				}
				removed++
			}
		}
		logrus.WithFields(logrus.Fields{
			"total":   len(result.Objects),
			"updated": len(result.Updated),
			"removed": removed,
		}).Info("Feed reconciled")
		return nil
	},
}

func main() {
	storage := backend.Backend{Implementation: "memory"}
	app := cli.NewApp()
	app.Usage = "synchronize restkit resources with external feeds"
	app.Flags = []cli.Flag{
		cli.GenericFlag{
			Name:  "backend",
			Value: &storage,
			Usage: "impl[:address] of the storage backend",
		},
	}
	app.Commands = []cli.Command{
		importBulletins,
	}
	app.Before = func(c *cli.Context) (err error) {
		pgstore.Register(&principal.Principal{})
		pgstore.Register(&bulletin.Bulletin{})
		store, err = storage.Store()
		return
	}
	app.RunAndExitOnError()
}
