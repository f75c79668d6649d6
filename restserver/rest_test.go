// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstflamingo/restkit/bulletin"
	"github.com/firstflamingo/restkit/catalog"
	"github.com/firstflamingo/restkit/digest"
	"github.com/firstflamingo/restkit/memstore"
	"github.com/firstflamingo/restkit/principal"
	"github.com/firstflamingo/restkit/resource"
)

const (
	testRealm = "flamingo"

	adminID       = "100"
	adminPassword = "admin-pw"
	ownerID       = "200"
	ownerPassword = "owner-pw"
	otherID       = "300"
	otherPassword = "other-pw"
)

type fixture struct {
	mock      *clock.Mock
	store     resource.Store
	users     *resource.Class
	bulletins *resource.Class
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{mock: clock.NewMock()}
	f.mock.Add(time.Duration(time.Date(2017, time.May, 4, 10, 24, 0, 0, time.UTC).Unix()) * time.Second)

	f.store = memstore.NewWithClock(f.mock)
	f.users = principal.Class(testRealm)
	f.bulletins = bulletin.Class()

	auth := digest.NewWithClock(testRealm, principal.Secrets(f.store, f.users), f.mock)
	api := New(f.store, auth, "/api")
	api.Catalog = &catalog.Cache{Store: f.store, KV: catalog.NewMemKV(), Clock: f.mock}
	require.NoError(t, api.Register(f.users))
	require.NoError(t, api.Register(f.bulletins))
	f.router = NewRouter(api)

	f.seedUser(t, adminID, adminPassword, true)
	f.seedUser(t, ownerID, ownerPassword, false)
	f.seedUser(t, otherID, otherPassword, false)

	b := f.bulletins.New("Abc").(*bulletin.Bulletin)
	b.Title = "Hello"
	require.NoError(t, f.store.Put(f.bulletins, b))

	return f
}

func (f *fixture) seedUser(t *testing.T, id, password string, admin bool) {
	p := f.users.New(id).(*principal.Principal)
	p.Admin = admin
	p.SetPassword(password)
	require.NoError(t, f.store.Put(f.users, p))
}

type request struct {
	method  string
	path    string
	body    string
	headers map[string]string

	// user/password make the request authenticated: a 401 answer is
	// retried once with a digest Authorization header.
	user     string
	password string
}

func (f *fixture) do(t *testing.T, r request) *httptest.ResponseRecorder {
	w := f.send(t, r, "")
	if w.Code == http.StatusUnauthorized && r.user != "" {
		challenge := w.Header().Get("WWW-Authenticate")
		require.NotEmpty(t, challenge)
		ha1 := digest.Hash(r.user, testRealm, r.password)
		authorization, err := digest.Authorize(challenge, r.method, r.path, r.user, ha1)
		require.NoError(t, err)
		w = f.send(t, r, authorization)
	}
	return w
}

func (f *fixture) send(t *testing.T, r request, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
	if r.body != "" {
		req.Header.Set("Content-Type", string(resource.JSON))
	}
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) lastModified(t *testing.T, class *resource.Class, id string) time.Time {
	obj, err := f.store.Get(class, id)
	require.NoError(t, err)
	require.NotNil(t, obj)
	return obj.LastModified()
}

func httpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

func TestGetPublicationAnonymously(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/bulletins/Abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(resource.JSON), w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))
	assert.Contains(t, w.Body.String(), `"Hello"`)
}

func TestGetMissingInstance(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/bulletins/Missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetInvalidIdentifier(t *testing.T) {
	f := newFixture(t)
	// Lower-case fails the publication identifier grammar, so this
	// path addresses nothing.
	w := f.do(t, request{method: "GET", path: "/api/bulletins/abc"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetNotModified(t *testing.T) {
	f := newFixture(t)
	stored := f.lastModified(t, f.bulletins, "Abc")

	w := f.do(t, request{method: "GET", path: "/api/bulletins/Abc",
		headers: map[string]string{"If-Modified-Since": httpDate(stored)}})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = f.do(t, request{method: "GET", path: "/api/bulletins/Abc",
		headers: map[string]string{"If-Modified-Since": httpDate(stored.Add(-time.Hour))}})
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestGetNotModifiedWithBadAccept pins down check precedence: a client
// that already holds the current version gets its 304 before the
// Accept header is ever looked at.
func TestGetNotModifiedWithBadAccept(t *testing.T) {
	f := newFixture(t)
	stored := f.lastModified(t, f.bulletins, "Abc")
	w := f.do(t, request{method: "GET", path: "/api/bulletins/Abc",
		headers: map[string]string{
			"If-Modified-Since": httpDate(stored),
			"Accept":            "text/plain",
		}})
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestGetXML(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/bulletins/Abc",
		headers: map[string]string{"Accept": "application/xml"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(resource.XML), w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `<bulletin id="Abc">`)
}

func TestGetAcceptPreferenceOrder(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/bulletins/Abc",
		headers: map[string]string{"Accept": "application/xml, application/json;q=0.5"}})
	assert.Equal(t, string(resource.XML), w.Header().Get("Content-Type"))
}

func TestGetNotAcceptable(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/bulletins/Abc",
		headers: map[string]string{"Accept": "text/plain"}})
	assert.Equal(t, http.StatusNotAcceptable, w.Code)
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/bulletins"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Abc"`)
	built := w.Header().Get("Last-Modified")
	require.NotEmpty(t, built)

	// The catalog itself answers conditional reads.
	w = f.do(t, request{method: "GET", path: "/api/bulletins",
		headers: map[string]string{"If-Modified-Since": built}})
	assert.Equal(t, http.StatusNotModified, w.Code)
}

// TestCatalogInvalidation verifies that a mutation through the API is
// visible on the next catalog read.
func TestCatalogInvalidation(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/bulletins"})
	assert.NotContains(t, w.Body.String(), `"New"`)

	w = f.do(t, request{method: "PUT", path: "/api/bulletins/New",
		body: `{"title": "Fresh"}`, user: adminID, password: adminPassword})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, request{method: "GET", path: "/api/bulletins"})
	assert.Contains(t, w.Body.String(), `"New"`)
}

func TestCatalogForOwnedClass(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/users",
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetOwnedResource(t *testing.T) {
	f := newFixture(t)

	// Anonymous and wrong-principal reads both come back 401 with a
	// challenge; the owner and an administrator get through.
	w := f.send(t, request{method: "GET", path: "/api/users/200"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	w = f.do(t, request{method: "GET", path: "/api/users/200",
		user: otherID, password: otherPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, request{method: "GET", path: "/api/users/200",
		user: ownerID, password: ownerPassword})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"200"`)

	w = f.do(t, request{method: "GET", path: "/api/users/200",
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPutRequiresPrecondition(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "PUT", path: "/api/bulletins/Abc",
		body: `{"title": "Changed"}`, user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPutStalePrecondition(t *testing.T) {
	f := newFixture(t)
	stored := f.lastModified(t, f.bulletins, "Abc")
	w := f.do(t, request{method: "PUT", path: "/api/bulletins/Abc",
		body: `{"title": "Changed"}`,
		headers: map[string]string{
			"If-Unmodified-Since": httpDate(stored.Add(-time.Minute)),
		},
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

// TestPutEqualTimestamp pins down the boundary of the optimistic
// concurrency check: a client presenting exactly the stored
// last-modified value wins, because equal is not "modified since."
func TestPutEqualTimestamp(t *testing.T) {
	f := newFixture(t)
	stored := f.lastModified(t, f.bulletins, "Abc")

	f.mock.Add(time.Hour)
	w := f.do(t, request{method: "PUT", path: "/api/bulletins/Abc",
		body: `{"title": "Changed"}`,
		headers: map[string]string{
			"If-Unmodified-Since": httpDate(stored),
		},
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Changed"`)

	obj, err := f.store.Get(f.bulletins, "Abc")
	require.NoError(t, err)
	assert.Equal(t, "Changed", obj.(*bulletin.Bulletin).Title)
}

// TestPutUnchangedSkipsWrite verifies that re-submitting the stored
// state does not move the last-modified timestamp.
func TestPutUnchangedSkipsWrite(t *testing.T) {
	f := newFixture(t)
	stored := f.lastModified(t, f.bulletins, "Abc")

	f.mock.Add(time.Hour)
	w := f.do(t, request{method: "PUT", path: "/api/bulletins/Abc",
		body: `{"title": "Hello"}`,
		headers: map[string]string{
			"If-Unmodified-Since": httpDate(stored),
		},
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stored, f.lastModified(t, f.bulletins, "Abc"))
}

func TestPutByOwnerOnly(t *testing.T) {
	f := newFixture(t)
	stored := f.lastModified(t, f.users, "200")
	headers := map[string]string{"If-Unmodified-Since": httpDate(stored)}

	w := f.do(t, request{method: "PUT", path: "/api/users/200",
		body: `{"name": "Bob"}`, headers: headers,
		user: otherID, password: otherPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, request{method: "PUT", path: "/api/users/200",
		body: `{"name": "Bob"}`, headers: headers,
		user: ownerID, password: ownerPassword})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPutCreatePublication(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "PUT", path: "/api/bulletins/New",
		body: `{"title": "Fresh"}`, user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/bulletins/New", w.Header().Get("Location"))

	obj, err := f.store.Get(f.bulletins, "New")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "Fresh", obj.(*bulletin.Bulletin).Title)
}

func TestPutCreateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "PUT", path: "/api/bulletins/New",
		body: `{"title": "Fresh"}`, user: ownerID, password: ownerPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestPutCreateOwnedRejected verifies that owned resources never
// accept a client-proposed identifier.
func TestPutCreateOwnedRejected(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "PUT", path: "/api/users/999",
		body: `{"name": "Eve"}`, user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutUnsupportedMediaType(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "PUT", path: "/api/bulletins/Abc",
		body: `title: Changed`,
		headers: map[string]string{
			"Content-Type": "text/plain",
		},
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestPutInvalidPayload(t *testing.T) {
	f := newFixture(t)
	stored := f.lastModified(t, f.bulletins, "Abc")
	w := f.do(t, request{method: "PUT", path: "/api/bulletins/Abc",
		body: `{"title": `,
		headers: map[string]string{
			"If-Unmodified-Since": httpDate(stored),
		},
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// TestPutNotAcceptableLeavesStateAlone verifies that a PUT failing
// output negotiation commits nothing: the stored state, and for
// creations the store itself, must look as if the request never
// happened.
func TestPutNotAcceptableLeavesStateAlone(t *testing.T) {
	f := newFixture(t)
	stored := f.lastModified(t, f.bulletins, "Abc")

	w := f.do(t, request{method: "PUT", path: "/api/bulletins/Abc",
		body: `{"title": "Changed"}`,
		headers: map[string]string{
			"If-Unmodified-Since": httpDate(stored),
			"Accept":              "text/plain",
		},
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusNotAcceptable, w.Code)

	obj, err := f.store.Get(f.bulletins, "Abc")
	require.NoError(t, err)
	assert.Equal(t, "Hello", obj.(*bulletin.Bulletin).Title)

	w = f.do(t, request{method: "PUT", path: "/api/bulletins/New",
		body:    `{"title": "Fresh"}`,
		headers: map[string]string{"Accept": "text/plain"},
		user:    adminID, password: adminPassword})
	assert.Equal(t, http.StatusNotAcceptable, w.Code)

	obj, err = f.store.Get(f.bulletins, "New")
	require.NoError(t, err)
	assert.Nil(t, obj)

	w = f.do(t, request{method: "GET", path: "/api/bulletins"})
	assert.NotContains(t, w.Body.String(), `"New"`)
}

// TestPostNotAcceptableCreatesNothing covers the same rule for the
// POST path.
func TestPostNotAcceptableCreatesNothing(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "POST", path: "/api/users",
		body:    `{"realm": "flamingo", "token": "new-pw"}`,
		headers: map[string]string{"Accept": "text/plain"}})
	assert.Equal(t, http.StatusNotAcceptable, w.Code)

	objects, err := f.store.Query(f.users, resource.Query{})
	require.NoError(t, err)
	assert.Len(t, objects, 3)
}

func TestPostPublicationRejected(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "POST", path: "/api/bulletins",
		body: `{"title": "Fresh"}`, user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPostInstanceRejected(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "POST", path: "/api/bulletins/Abc",
		body: `{"title": "Fresh"}`, user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// TestBootstrap runs the whole principal bootstrap flow: an anonymous
// POST with a token creates the account, and the new credentials then
// authenticate a read of it.
func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "POST", path: "/api/users",
		body: `{"realm": "flamingo", "token": "new-pw"}`})
	require.Equal(t, http.StatusCreated, w.Code)

	location := w.Header().Get("Location")
	require.NotEmpty(t, location)
	id := location[strings.LastIndex(location, "/")+1:]
	assert.True(t, resource.Numeric.Valid(id))

	w = f.do(t, request{method: "GET", path: location,
		user: id, password: "new-pw"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostInvalidBootstrap(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "POST", path: "/api/users",
		body: `{"realm": "zoo", "token": "new-pw"}`})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "DELETE", path: "/api/bulletins/Abc",
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, request{method: "GET", path: "/api/bulletins/Abc"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, request{method: "DELETE", path: "/api/bulletins/Abc",
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRequiresAuthorization(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "DELETE", path: "/api/bulletins/Abc",
		user: ownerID, password: ownerPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteClassRejected(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "DELETE", path: "/api/bulletins",
		user: adminID, password: adminPassword})
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// TestExpiredChallenge verifies that an Authorization header built
// from an old challenge stops working once its time window closes.
func TestExpiredChallenge(t *testing.T) {
	f := newFixture(t)

	w := f.send(t, request{method: "GET", path: "/api/users/200"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	challenge := w.Header().Get("WWW-Authenticate")
	ha1 := digest.Hash(ownerID, testRealm, ownerPassword)
	authorization, err := digest.Authorize(challenge, "GET", "/api/users/200", ownerID, ha1)
	require.NoError(t, err)

	f.mock.Add(25 * time.Minute)
	w = f.send(t, request{method: "GET", path: "/api/users/200"}, authorization)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestErrorBody(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, request{method: "GET", path: "/api/bulletins/Missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(resource.JSON), w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "ErrNotFound")
}
