// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes registered resource classes as a REST
// service.  The restclient package is a matching client.
//
// Every class is reachable under the API root as
//
//     /{root}/{class-url-name}
//     /{root}/{class-url-name}/{identifier}
//
// Publication classes answer a class-level GET with their catalog, a
// JSON listing of every live instance and its last-modified time.
// Instances are created with POST (owned classes, server-assigned
// identifiers) or PUT (publication classes, administrator-assigned
// identifiers), updated with PUT, and removed with DELETE.
//
// HTTP Considerations
//
// GET requests default to returning JSON.  Classes that declare an XML
// representation also answer to the standard Accept: header, in client
// preference order.
//
// Writes are guarded by optimistic concurrency: a PUT against an
// existing instance must carry If-Unmodified-Since with the
// last-modified value the client last observed, and loses with 412 if
// the stored copy is newer.  Reads may carry If-Modified-Since and get
// 304 back.  Timestamps compare at whole-second UTC precision, the
// precision of the HTTP date format.
//
// All requests except publication reads and explicitly exempted
// creates carry HTTP Digest authentication; any authentication or
// authorization failure is answered with a fresh 401 challenge that
// does not say what went wrong.
package restserver
