// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/firstflamingo/restkit/catalog"
	"github.com/firstflamingo/restkit/digest"
	"github.com/firstflamingo/restkit/resource"
)

// API holds the persistent state for one REST service: the backing
// store, the authenticator, the catalog cache, and the registered
// resource classes.
type API struct {
	// Store is the persistence layer all requests dispatch to.
	Store resource.Store

	// Auth validates Authorization headers and issues challenges.
	Auth *digest.Authenticator

	// Catalog memoizes publication catalogs.  If nil, New fills in
	// an in-process cache over Store.
	Catalog *catalog.Cache

	// Root is the leading URL path segment all classes live under,
	// for instance "/api".
	Root string

	// Logger receives per-request diagnostics.  If nil, the logrus
	// standard logger is used.
	Logger *logrus.Logger

	classes []*resource.Class
}

// New creates an API serving registered classes from a store under the
// given root path segment.
func New(store resource.Store, auth *digest.Authenticator, root string) *API {
	return &API{
		Store:   store,
		Auth:    auth,
		Catalog: catalog.New(store),
		Root:    root,
	}
}

// Register adds a resource class to the API.  An incomplete class
// definition is rejected here, before it can serve a single request.
func (api *API) Register(class *resource.Class) error {
	if err := class.Check(); err != nil {
		return err
	}
	api.classes = append(api.classes, class)
	return nil
}

// NewRouter creates a new HTTP handler that processes all requests for
// the API's registered classes.  For more control over the setup,
// create a mux.Router and call PopulateRouter instead.
func NewRouter(api *API) http.Handler {
	r := mux.NewRouter()
	api.PopulateRouter(r)
	return r
}

// PopulateRouter adds one route per registered class to an existing
// github.com/gorilla/mux router object.
func (api *API) PopulateRouter(r *mux.Router) {
	for _, class := range api.classes {
		r.PathPrefix(api.Root + "/" + class.URLName).
			Name(class.URLName).
			Handler(&classHandler{api: api, class: class})
	}
}

func (api *API) logger() *logrus.Logger {
	if api.Logger != nil {
		return api.Logger
	}
	return logrus.StandardLogger()
}
