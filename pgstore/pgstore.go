// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package pgstore implements the restkit resource store on top of
// PostgreSQL.
//
// Objects are stored as opaque gob payloads keyed by class and
// identifier, with the last-modified time broken out into its own
// column so that catalogs can be queried in order without decoding
// anything.  Concrete object types must be registered with Register
// before they pass through the store.
package pgstore

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/gob"
	"strconv"

	"github.com/benbjohnson/clock"
	_ "github.com/lib/pq"
	"github.com/satori/go.uuid"

	"github.com/firstflamingo/restkit/resource"
)

// Register records a concrete object type with the payload codec.
// Call it once per stored type, before the first store operation.
func Register(obj resource.Object) {
	gob.Register(obj)
}

type pgStore struct {
	db    *sql.DB
	clock clock.Clock
}

// New creates a store using the provided PostgreSQL connection
// string.  The string may be an expanded connection string, a
// "postgres:" URL, or a URL without a scheme; missing parameters are
// filled in from the libpq environment variables.
//
// The returned store carries a connection pool and should be shared
// across the application.
func New(connectionString string) (resource.Store, error) {
	return NewWithClock(connectionString, clock.New())
}

// NewWithClock creates a store with an explicit time source.  See New
// for further details.  Most application code should call New; this
// entry point is for tests that need to inject a mock time source.
func NewWithClock(connectionString string, clk clock.Clock) (resource.Store, error) {
	// If the connection string is a destructured URL, turn it back
	// into a proper URL
	if len(connectionString) >= 2 && connectionString[0] == '/' && connectionString[1] == '/' {
		connectionString = "postgres:" + connectionString
	}

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}
	if err = Upgrade(db); err != nil {
		return nil, err
	}

	return &pgStore{db: db, clock: clk}, nil
}

func (s *pgStore) Get(class *resource.Class, id string) (resource.Object, error) {
	row := s.db.QueryRow("SELECT payload FROM resource WHERE class=$1 AND id=$2",
		class.Name, id)
	var payload []byte
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeObject(payload)
}

func (s *pgStore) Query(class *resource.Class, q resource.Query) ([]resource.Object, error) {
	query := "SELECT payload FROM resource WHERE class=$1 ORDER BY last_modified DESC, id ASC"
	args := []interface{}{class.Name}
	if q.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, q.Limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []resource.Object
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		obj, err := decodeObject(payload)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

func (s *pgStore) Put(class *resource.Class, obj resource.Object) error {
	obj.SetLastModified(s.clock.Now())
	payload, err := encodeObject(obj)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		"INSERT INTO resource (class, id, last_modified, payload) VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (class, id) DO UPDATE SET last_modified=$3, payload=$4",
		class.Name, obj.ID(), obj.LastModified(), payload)
	return err
}

func (s *pgStore) Delete(class *resource.Class, id string) error {
	_, err := s.db.Exec("DELETE FROM resource WHERE class=$1 AND id=$2",
		class.Name, id)
	return err
}

func (s *pgStore) NewID(class *resource.Class) (string, error) {
	for {
		u := uuid.NewV4()
		n := binary.BigEndian.Uint64(u[:8]) &^ (1 << 63)
		id := strconv.FormatUint(n, 10)

		row := s.db.QueryRow("SELECT COUNT(*) FROM resource WHERE class=$1 AND id=$2",
			class.Name, id)
		var count int
		if err := row.Scan(&count); err != nil {
			return "", err
		}
		if count == 0 {
			return id, nil
		}
	}
}

func encodeObject(obj resource.Object) ([]byte, error) {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(&obj); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func decodeObject(payload []byte) (resource.Object, error) {
	var obj resource.Object
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}
