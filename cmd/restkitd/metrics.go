// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/negroni"
)

var requestCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "restkit",
		Name:      "requests_total",
		Help:      "Count of handled HTTP requests",
	},
	[]string{
		"method",
		"status",
	},
)

func init() {
	prometheus.MustRegister(requestCount)
}

// countRequests is a negroni middleware counting every handled request
// by method and response status.
func countRequests(w http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
	nw := negroni.NewResponseWriter(w)
	next(nw, req)
	requestCount.With(prometheus.Labels{
		"method": req.Method,
		"status": strconv.Itoa(nw.Status()),
	}).Inc()
}
