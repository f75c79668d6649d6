// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains the per-class request dispatcher.
//
// The bulk of this is dealing with HTTP content type negotiation, the
// conditional headers, and the authorization rule shared by every
// method.  Each HTTP method maps to one handler function returning
// (*response, error); ServeHTTP turns either outcome into wire form,
// attaching a fresh challenge to every 401.

import (
	"errors"
	"io/ioutil"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/firstflamingo/restkit/digest"
	"github.com/firstflamingo/restkit/resource"
)

// errBadAccept is returned from negotiate() if the Accept: header is
// malformed (and no more specific error applies).
var errBadAccept = errors.New("Invalid Accept: header")

// errUnauthorized is used for every authentication and authorization
// failure.  The client always sees the same message and a fresh
// challenge; the cause stays in the server log.
type errUnauthorized struct{}

func (e errUnauthorized) Error() string {
	return "Authentication required"
}

func (e errUnauthorized) HTTPStatus() int {
	return http.StatusUnauthorized
}

// response describes a successful handler outcome.
type response struct {
	status       int
	mediaType    resource.MediaType
	body         []byte
	lastModified time.Time
	location     string
}

type classHandler struct {
	api   *API
	class *resource.Class
}

func (h *classHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Recover from panics by sending an HTTP error.
	defer func() {
		if recovered := recover(); recovered != nil {
			errResp := resource.ErrorResponse{}
			errResp.FromPanic(recovered)
			body, _ := resource.EncodeJSON(errResp)
			w.Header().Set("Content-Type", string(resource.JSON))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write(body)
		}
	}()

	resp, err := h.serve(req)
	if err != nil {
		status := http.StatusInternalServerError
		if errS, hasStatus := err.(resource.ErrorStatus); hasStatus {
			status = errS.HTTPStatus()
		}
		if status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", h.api.Auth.Challenge())
		}
		errResp := resource.ErrorResponse{}
		errResp.FromError(err)
		body, _ := resource.EncodeJSON(errResp)
		w.Header().Set("Content-Type", string(resource.JSON))
		w.WriteHeader(status)
		w.Write(body)
		h.log(req, status)
		return
	}

	if resp.location != "" {
		w.Header().Set("Location", resp.location)
	}
	if !resp.lastModified.IsZero() {
		w.Header().Set("Last-Modified",
			resp.lastModified.UTC().Format(http.TimeFormat))
	}
	if len(resp.body) > 0 {
		w.Header().Set("Content-Type", string(resp.mediaType))
	}
	w.WriteHeader(resp.status)
	if len(resp.body) > 0 && req.Method != "HEAD" {
		w.Write(resp.body)
	}
	h.log(req, resp.status)
}

func (h *classHandler) log(req *http.Request, status int) {
	h.api.logger().WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
		"status": status,
	}).Debug("request")
}

func (h *classHandler) serve(req *http.Request) (*response, error) {
	kind, id := resource.ParsePath(req.URL.Path, h.class)
	switch kind {
	case resource.PathClass:
		switch req.Method {
		case "GET", "HEAD":
			return h.getCatalog(req)
		case "POST":
			return h.create(req)
		case "PUT":
			// Creating requires an identifier in the URL; for
			// owned classes not even that would help.
			if h.class.IsPublication() {
				return nil, resource.ErrBadRequest{Err: resource.ErrNoValidIdentifier}
			}
			return nil, resource.ErrNotFound{Err: errors.New("no resource at " + req.URL.Path)}
		}
	case resource.PathInstance:
		switch req.Method {
		case "GET", "HEAD":
			return h.getInstance(req, id)
		case "PUT":
			return h.update(req, id)
		case "DELETE":
			return h.delete(req, id)
		}
	default:
		return nil, resource.ErrNotFound{Err: errors.New("no resource at " + req.URL.Path)}
	}
	return nil, resource.ErrMethodNotAllowed{Method: req.Method}
}

// authenticate resolves the request's Authorization header to a
// principal.  Every failure mode collapses to errUnauthorized on the
// wire; the cause is only logged.
func (h *classHandler) authenticate(req *http.Request) (digest.Principal, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return nil, errUnauthorized{}
	}
	principal, err := h.api.Auth.Authenticate(header, req.Method, req.URL.Path)
	if err != nil {
		h.api.logger().WithFields(logrus.Fields{
			"method":        req.Method,
			"path":          req.URL.Path,
			logrus.ErrorKey: err,
		}).Info("authentication failed")
		return nil, errUnauthorized{}
	}
	return principal, nil
}

// authorized applies the shared authorization rule: administrators may
// touch anything, owners may touch what they own, and resources with
// no owner concept are administrator-only.
func authorized(principal digest.Principal, obj resource.Object) bool {
	if principal == nil {
		return false
	}
	if principal.HasAdminPrivileges() {
		return true
	}
	if owner, owned := obj.(resource.Owner); owned {
		return owner.Owner() != "" && owner.Owner() == principal.Username()
	}
	return false
}

func (h *classHandler) getCatalog(req *http.Request) (*response, error) {
	if !h.class.IsPublication() {
		return nil, resource.ErrMethodNotAllowed{Method: req.Method}
	}
	if _, err := negotiate(req, []resource.MediaType{resource.JSON}); err != nil {
		return nil, err
	}

	payload, built, err := h.api.Catalog.Catalog(h.class)
	if err != nil {
		return nil, err
	}
	since, present, err := parseTimeHeader(req, "If-Modified-Since")
	if err != nil {
		return nil, err
	}
	if present && !built.After(since) {
		return &response{status: http.StatusNotModified}, nil
	}
	return &response{
		status:       http.StatusOK,
		mediaType:    resource.JSON,
		body:         payload,
		lastModified: built,
	}, nil
}

func (h *classHandler) getInstance(req *http.Request, id string) (*response, error) {
	obj, err := h.api.Store.Get(h.class, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, resource.ErrNotFound{Err: errors.New("no resource with id " + id)}
	}

	// Publications are world-readable; everything else needs an
	// authorized reader.
	if !h.class.IsPublication() {
		principal, err := h.authenticate(req)
		if err != nil {
			return nil, err
		}
		if !authorized(principal, obj) {
			return nil, errUnauthorized{}
		}
	}

	// The conditional check comes first: a client that already holds
	// the current version gets its 304 even with a useless Accept.
	since, present, err := parseTimeHeader(req, "If-Modified-Since")
	if err != nil {
		return nil, err
	}
	if present && !obj.LastModified().After(since) {
		return &response{status: http.StatusNotModified}, nil
	}
	mt, err := negotiate(req, h.class.Writable)
	if err != nil {
		return nil, err
	}

	body, err := obj.Serialize(mt)
	if err != nil {
		return nil, err
	}
	return &response{
		status:       http.StatusOK,
		mediaType:    mt,
		body:         body,
		lastModified: obj.LastModified(),
	}, nil
}

func (h *classHandler) create(req *http.Request) (*response, error) {
	// Publications get their identifiers from an administrator via
	// PUT; POST only creates server-identified resources.
	if h.class.IsPublication() {
		return nil, resource.ErrMethodNotAllowed{Method: req.Method}
	}

	var principal digest.Principal
	if !h.class.AllowAnonymousCreate {
		var err error
		principal, err = h.authenticate(req)
		if err != nil {
			return nil, err
		}
	}

	mt, data, err := h.readBody(req)
	if err != nil {
		return nil, err
	}
	// Settle the response type before touching the store, so that a
	// failed negotiation cannot leave a created resource behind.
	outType, err := negotiate(req, h.class.Writable)
	if err != nil {
		return nil, err
	}

	id, err := h.api.Store.NewID(h.class)
	if err != nil {
		return nil, err
	}
	obj := h.class.New(id)
	if setter, hasOwner := obj.(resource.OwnerSetter); hasOwner && principal != nil {
		setter.SetOwner(principal.Username())
	}
	if setter, hasOrigin := obj.(resource.OriginSetter); hasOrigin {
		setter.SetOrigin(req.RemoteAddr)
	}
	if _, err := obj.Update(data, mt); err != nil {
		return nil, err
	}
	if err := h.api.Store.Put(h.class, obj); err != nil {
		return nil, err
	}

	return h.created(obj, outType, req.URL.Path+"/"+id)
}

func (h *classHandler) update(req *http.Request, id string) (*response, error) {
	principal, err := h.authenticate(req)
	if err != nil {
		return nil, err
	}
	mt, data, err := h.readBody(req)
	if err != nil {
		return nil, err
	}

	obj, err := h.api.Store.Get(h.class, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return h.createAt(req, principal, id, mt, data)
	}

	if !authorized(principal, obj) {
		return nil, errUnauthorized{}
	}
	seen, present, err := parseTimeHeader(req, "If-Unmodified-Since")
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, resource.ErrMissingPrecondition{}
	}
	// Equal timestamps pass: the client has seen the stored version.
	if obj.LastModified().After(seen) {
		return nil, resource.ErrPreconditionFailed{}
	}
	// Settle the response type before applying anything: a failed
	// negotiation must not leave the update committed behind a 406.
	outType, err := negotiate(req, h.class.Writable)
	if err != nil {
		return nil, err
	}

	changed, err := obj.Update(data, mt)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := h.api.Store.Put(h.class, obj); err != nil {
			return nil, err
		}
		h.invalidate()
	}

	body, err := obj.Serialize(outType)
	if err != nil {
		return nil, err
	}
	return &response{
		status:       http.StatusOK,
		mediaType:    outType,
		body:         body,
		lastModified: obj.LastModified(),
	}, nil
}

// createAt creates a resource at a client-supplied identifier.  Only
// administrators may do this, and only for publication classes; owned
// resources never accept a client-proposed identifier, which reads as
// an absent resource.
func (h *classHandler) createAt(req *http.Request, principal digest.Principal, id string, mt resource.MediaType, data []byte) (*response, error) {
	if !h.class.IsPublication() {
		return nil, resource.ErrNotFound{Err: errors.New("no resource with id " + id)}
	}
	if !principal.HasAdminPrivileges() {
		return nil, errUnauthorized{}
	}
	outType, err := negotiate(req, h.class.Writable)
	if err != nil {
		return nil, err
	}

	obj := h.class.New(id)
	if setter, hasOrigin := obj.(resource.OriginSetter); hasOrigin {
		setter.SetOrigin(req.RemoteAddr)
	}
	if _, err := obj.Update(data, mt); err != nil {
		return nil, err
	}
	if err := h.api.Store.Put(h.class, obj); err != nil {
		return nil, err
	}
	h.invalidate()

	return h.created(obj, outType, req.URL.Path)
}

func (h *classHandler) delete(req *http.Request, id string) (*response, error) {
	principal, err := h.authenticate(req)
	if err != nil {
		return nil, err
	}
	obj, err := h.api.Store.Get(h.class, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, resource.ErrNotFound{Err: errors.New("no resource with id " + id)}
	}
	if !authorized(principal, obj) {
		return nil, errUnauthorized{}
	}
	if err := h.api.Store.Delete(h.class, id); err != nil {
		return nil, err
	}
	h.invalidate()
	return &response{status: http.StatusNoContent}, nil
}

// created renders a fresh resource as a 201 response.  The media type
// was negotiated by the caller, before the resource was written.
func (h *classHandler) created(obj resource.Object, outType resource.MediaType, location string) (*response, error) {
	body, err := obj.Serialize(outType)
	if err != nil {
		return nil, err
	}
	return &response{
		status:       http.StatusCreated,
		mediaType:    outType,
		body:         body,
		lastModified: obj.LastModified(),
		location:     location,
	}, nil
}

// readBody checks the request Content-Type against the class's
// readable types and reads the full body.
func (h *classHandler) readBody(req *http.Request) (resource.MediaType, []byte, error) {
	contentType := req.Header.Get("Content-Type")
	mt, known := resource.ParseMediaType(contentType)
	if !known || !h.class.CanRead(mt) {
		return "", nil, resource.ErrUnsupportedMediaType{Type: contentType}
	}
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		return "", nil, resource.ErrBadRequest{Err: err}
	}
	return mt, data, nil
}

func (h *classHandler) invalidate() {
	if h.class.IsPublication() {
		h.api.Catalog.Invalidate(h.class)
	}
}

// parseTimeHeader reads an HTTP date header, reporting whether it was
// present at all.
func parseTimeHeader(req *http.Request, name string) (time.Time, bool, error) {
	value := req.Header.Get(name)
	if value == "" {
		return time.Time{}, false, nil
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, false, resource.ErrBadRequest{Err: err}
	}
	return t, true, nil
}

// negotiate returns a media type for the response body from the
// class's writable set, following the path laid out in RFC 7231
// section 5.3.  The first writable type is the class default, used
// for wildcard matches.
func negotiate(req *http.Request, writable []resource.MediaType) (resource.MediaType, error) {
	accept := req.Header.Get("Accept")
	if accept == "" {
		accept = "*/*"
	}
	supported := func(mt resource.MediaType) bool {
		for _, w := range writable {
			if w == mt {
				return true
			}
		}
		return false
	}

	bestType := ""
	bestQ := 0.0
	mediaRanges := strings.Split(accept, ",")
	for _, mediaRange := range mediaRanges {
		mediaRange = strings.TrimSpace(mediaRange)
		mediaType, params, err := mime.ParseMediaType(mediaRange)
		if err != nil {
			return "", resource.ErrBadRequest{Err: errBadAccept}
		}

		// What is the "q" ("quality") parameter for this type?
		// If it is less than the best known so far, skip it
		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil {
				return "", resource.ErrBadRequest{Err: errBadAccept}
			}
			if q < 0.0 || q > 1.0 {
				return "", resource.ErrBadRequest{Err: errBadAccept}
			}
		}
		if q < bestQ {
			continue
		}

		// This is acceptable if the class can write it, or if it
		// is one of a couple of specific wildcards.  Also need to
		// handle wildcard precedence.  So:
		if mediaType == "*/*" {
			// Doesn't override anything.
			if q > bestQ {
				bestType = mediaType
				bestQ = q
			}
		} else if mediaType == "application/*" {
			// Only overrides "*/*".
			if q > bestQ || bestType == "*/*" {
				bestType = mediaType
				bestQ = q
			}
		} else if supported(resource.MediaType(mediaType)) {
			// Overrides any wildcard.  We want the first one
			// at a given q to win.
			if q > bestQ || bestType == "*/*" || bestType == "application/*" {
				bestType = mediaType
				bestQ = q
			}
		}
		// Otherwise we don't recognize this type at all, so just
		// drop it.
	}
	if bestQ == 0.0 {
		return "", resource.ErrNotAcceptable{}
	}
	switch bestType {
	case "*/*", "application/*":
		return writable[0], nil
	}
	return resource.MediaType(bestType), nil
}
