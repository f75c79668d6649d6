// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/negroni"

	"github.com/firstflamingo/restkit/restserver"
)

// ServeHTTP runs an HTTP server on the specified local address.  This
// serves connections until the listener fails.  Panics inside request
// handling are caught by the negroni recovery middleware.
func ServeHTTP(api *restserver.API, laddr string) error {
	r := mux.NewRouter()
	api.PopulateRouter(r)
	r.Handle("/metrics", promhttp.Handler())

	n := negroni.New(negroni.NewRecovery())
	n.Use(negroni.HandlerFunc(countRequests))
	n.UseHandler(r)
	return http.ListenAndServe(laddr, n)
}
