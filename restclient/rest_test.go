// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstflamingo/restkit/bulletin"
	"github.com/firstflamingo/restkit/digest"
	"github.com/firstflamingo/restkit/memstore"
	"github.com/firstflamingo/restkit/principal"
	"github.com/firstflamingo/restkit/resource"
	"github.com/firstflamingo/restkit/restserver"
)

const (
	testRealm     = "flamingo"
	adminID       = "100"
	adminPassword = "admin-pw"
)

func startServer(t *testing.T) (*httptest.Server, resource.Store) {
	store := memstore.New()
	users := principal.Class(testRealm)
	auth := digest.New(testRealm, principal.Secrets(store, users))
	api := restserver.New(store, auth, "/api")
	require.NoError(t, api.Register(users))
	require.NoError(t, api.Register(bulletin.Class()))

	admin := users.New(adminID).(*principal.Principal)
	admin.Admin = true
	admin.SetPassword(adminPassword)
	require.NoError(t, store.Put(users, admin))

	b := bulletin.Class().New("Abc").(*bulletin.Bulletin)
	b.Title = "Hello"
	require.NoError(t, store.Put(bulletin.Class(), b))

	server := httptest.NewServer(restserver.NewRouter(api))
	t.Cleanup(server.Close)
	return server, store
}

func adminClient(t *testing.T, server *httptest.Server) *Client {
	client, err := New(server.URL+"/api/", adminID, testRealm, adminPassword)
	require.NoError(t, err)
	return client
}

func TestClientGet(t *testing.T) {
	server, _ := startServer(t)
	client := adminClient(t, server)

	entity, err := client.Get(bulletin.Class(), "Abc", resource.JSON, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, resource.JSON, entity.MediaType)
	assert.False(t, entity.LastModified.IsZero())
	assert.Contains(t, string(entity.Body), `"Hello"`)
}

func TestClientConditionalGet(t *testing.T) {
	server, _ := startServer(t)
	client := adminClient(t, server)

	entity, err := client.Get(bulletin.Class(), "Abc", resource.JSON, time.Time{})
	require.NoError(t, err)

	again, err := client.Get(bulletin.Class(), "Abc", resource.JSON, entity.LastModified)
	require.NoError(t, err)
	assert.True(t, again.NotModified)
}

func TestClientCatalog(t *testing.T) {
	server, _ := startServer(t)
	client := adminClient(t, server)

	entries, err := client.Catalog(bulletin.Class())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Abc", entries[0].ID)
	assert.NotEmpty(t, entries[0].LastModified)
}

// TestClientPut exercises the whole digest round trip: the first
// attempt comes back 401, and the retry carries a derived
// Authorization header built from the challenge.
func TestClientPut(t *testing.T) {
	server, store := startServer(t)
	client := adminClient(t, server)

	entity, err := client.Get(bulletin.Class(), "Abc", resource.JSON, time.Time{})
	require.NoError(t, err)

	updated, err := client.Put(bulletin.Class(), "Abc", resource.JSON,
		[]byte(`{"title": "Changed"}`), entity.LastModified)
	require.NoError(t, err)
	assert.Contains(t, string(updated.Body), `"Changed"`)

	obj, err := store.Get(bulletin.Class(), "Abc")
	require.NoError(t, err)
	assert.Equal(t, "Changed", obj.(*bulletin.Bulletin).Title)
}

func TestClientPutCreate(t *testing.T) {
	server, _ := startServer(t)
	client := adminClient(t, server)

	entity, err := client.Put(bulletin.Class(), "New", resource.JSON,
		[]byte(`{"title": "Fresh"}`), time.Time{})
	require.NoError(t, err)
	assert.Contains(t, entity.Location, "/api/bulletins/New")
}

func TestClientPost(t *testing.T) {
	server, store := startServer(t)
	// Principal bootstrap is anonymous; credentials do not matter.
	client, err := New(server.URL+"/api/", "", testRealm, "")
	require.NoError(t, err)

	entity, err := client.Post(principal.Class(testRealm), resource.JSON,
		[]byte(`{"realm": "flamingo", "token": "new-pw"}`))
	require.NoError(t, err)
	require.NotEmpty(t, entity.Location)

	id := entity.Location[strings.LastIndex(entity.Location, "/")+1:]
	obj, err := store.Get(principal.Class(testRealm), id)
	require.NoError(t, err)
	assert.NotNil(t, obj)
}

func TestClientDelete(t *testing.T) {
	server, store := startServer(t)
	client := adminClient(t, server)

	require.NoError(t, client.Delete(bulletin.Class(), "Abc"))
	obj, err := store.Get(bulletin.Class(), "Abc")
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestClientNotFound(t *testing.T) {
	server, _ := startServer(t)
	client := adminClient(t, server)

	_, err := client.Get(bulletin.Class(), "Missing", resource.JSON, time.Time{})
	require.Error(t, err)
	httpErr, isHTTP := err.(ErrorHTTP)
	require.True(t, isHTTP)
	assert.Equal(t, 404, httpErr.Response.StatusCode)
}
