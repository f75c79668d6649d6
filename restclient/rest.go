// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package restclient accesses resources published by a restserver
// service.
//
// The client answers digest challenges transparently: a request that
// comes back 401 with a WWW-Authenticate header is retried once with
// an Authorization header derived from the client's stored secret.
// Conditional headers ride along explicitly; the caller owns the
// last-modified bookkeeping of the resources it works with.
package restclient

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/jtacoma/uritemplates"

	"github.com/firstflamingo/restkit/digest"
	"github.com/firstflamingo/restkit/resource"
)

// Client accesses one restkit service as one principal.
type Client struct {
	// Base is the service URL up to and including the API root
	// segment, with a trailing slash, for instance
	// "https://example.org/api/".
	Base *url.URL

	// Username identifies the principal.
	Username string

	// HA1 is the principal's derived secret.
	HA1 string

	// HTTPClient performs the actual requests.  If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client
}

// New creates a client for the service at base, deriving the stored
// secret from the realm and password.
func New(base, username, realm, password string) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	return &Client{
		Base:     u,
		Username: username,
		HA1:      digest.Hash(username, realm, password),
	}, nil
}

// Entity is one retrieved or submitted representation.
type Entity struct {
	// Body is the serialized representation.
	Body []byte

	// MediaType is the representation's type.
	MediaType resource.MediaType

	// LastModified echoes the server's Last-Modified header.
	LastModified time.Time

	// Location echoes the server's Location header on creation.
	Location string

	// NotModified is set when a conditional GET answered 304; the
	// other fields are then empty.
	NotModified bool
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to be
	// text.
	Body string
}

func (e ErrorHTTP) Error() string {
	return fmt.Sprintf("%v (%v)", e.Response.Status, e.Body)
}

// Get retrieves one instance.  A non-zero ifModifiedSince is sent as
// If-Modified-Since, and a 304 answer comes back as an Entity with
// NotModified set.
func (c *Client) Get(class *resource.Class, id string, mt resource.MediaType, ifModifiedSince time.Time) (*Entity, error) {
	u, err := c.instanceURL(class, id)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Accept", string(mt))
	if !ifModifiedSince.IsZero() {
		headers.Set("If-Modified-Since", ifModifiedSince.UTC().Format(http.TimeFormat))
	}
	return c.do("GET", u, headers, nil)
}

// Put updates one instance, or creates a publication instance at an
// administrator-chosen identifier.  For updates, ifUnmodifiedSince
// must carry the last-modified value the caller last observed.
func (c *Client) Put(class *resource.Class, id string, mt resource.MediaType, body []byte, ifUnmodifiedSince time.Time) (*Entity, error) {
	u, err := c.instanceURL(class, id)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Content-Type", string(mt))
	headers.Set("Accept", string(mt))
	if !ifUnmodifiedSince.IsZero() {
		headers.Set("If-Unmodified-Since", ifUnmodifiedSince.UTC().Format(http.TimeFormat))
	}
	return c.do("PUT", u, headers, body)
}

// Post creates a new instance with a server-generated identifier.  The
// created instance's identifier is the last segment of the returned
// Location.
func (c *Client) Post(class *resource.Class, mt resource.MediaType, body []byte) (*Entity, error) {
	u, err := c.classURL(class)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Content-Type", string(mt))
	headers.Set("Accept", string(mt))
	return c.do("POST", u, headers, body)
}

// Delete removes one instance.
func (c *Client) Delete(class *resource.Class, id string) error {
	u, err := c.instanceURL(class, id)
	if err != nil {
		return err
	}
	_, err = c.do("DELETE", u, http.Header{}, nil)
	return err
}

// CatalogEntry is one line of a class catalog.
type CatalogEntry struct {
	ID           string `json:"id"`
	LastModified string `json:"lm"`
}

// Catalog retrieves and decodes the catalog of a publication class.
func (c *Client) Catalog(class *resource.Class) ([]CatalogEntry, error) {
	u, err := c.classURL(class)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Accept", string(resource.JSON))
	entity, err := c.do("GET", u, headers, nil)
	if err != nil {
		return nil, err
	}
	var entries []CatalogEntry
	if err := resource.DecodeJSON(entity.Body, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) classURL(class *resource.Class) (*url.URL, error) {
	return c.expand("{class}", map[string]interface{}{
		"class": class.URLName,
	})
}

func (c *Client) instanceURL(class *resource.Class, id string) (*url.URL, error) {
	return c.expand("{class}{/id}", map[string]interface{}{
		"class": class.URLName,
		"id":    id,
	})
}

// expand interprets template as a URI template, modified by vars, and
// takes the result relative to the client's base URL.
func (c *Client) expand(template string, vars map[string]interface{}) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}
	return c.Base.Parse(expanded)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// do performs one HTTP action, answering a digest challenge once if
// the first attempt comes back 401.
func (c *Client) do(method string, u *url.URL, headers http.Header, body []byte) (*Entity, error) {
	resp, err := c.roundTrip(method, u, headers, body, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		challenge := resp.Header.Get("WWW-Authenticate")
		resp.Body.Close()
		authorization, err := digest.Authorize(challenge, method, u.Path, c.Username, c.HA1)
		if err != nil {
			return nil, err
		}
		resp, err = c.roundTrip(method, u, headers, body, authorization)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Entity{NotModified: true}, nil
	}
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, ErrorHTTP{Response: resp, Body: string(data)}
	}

	entity := &Entity{
		Body:     data,
		Location: resp.Header.Get("Location"),
	}
	if mt, known := resource.ParseMediaType(resp.Header.Get("Content-Type")); known {
		entity.MediaType = mt
	}
	if value := resp.Header.Get("Last-Modified"); value != "" {
		if t, err := http.ParseTime(value); err == nil {
			entity.LastModified = t
		}
	}
	return entity, nil
}

func (c *Client) roundTrip(method string, u *url.URL, headers http.Header, body []byte, authorization string) (*http.Response, error) {
	var reader *bytes.Reader
	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if body != nil {
		reader = bytes.NewReader(body)
		req.Body = ioutil.NopCloser(reader)
		req.ContentLength = int64(len(body))
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return c.httpClient().Do(req)
}
