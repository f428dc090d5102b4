// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	store, err := NewWithOptions(
		WithHost("db.local"),
		WithUser("raffled"),
		WithPassword("pw"),
	)
	require.NoError(t, err)
	dsn := store.DSN()
	assert.Contains(t, dsn, "raffled:pw@tcp(db.local:3306)/raffled")
	assert.Contains(t, dsn, "parseTime=true")

	store, err = NewWithOptions(WithDSN(" root@tcp(localhost:3306)/draws?parseTime=true "))
	require.NoError(t, err)
	assert.Equal(t, "root@tcp(localhost:3306)/draws?parseTime=true", store.DSN())
}

func TestParseDatabaseFromDSN(t *testing.T) {
	testDefs := []struct {
		dsn      string
		expected string
		ok       bool
	}{
		{dsn: "root@tcp(localhost:3306)/raffled?parseTime=true", expected: "raffled", ok: true},
		{dsn: "root@tcp(localhost:3306)/raffled", expected: "raffled", ok: true},
		{dsn: "root@tcp(localhost:3306)/", ok: false},
		{dsn: "nodb", ok: false},
	}
	for _, testDef := range testDefs {
		db, ok := databaseFromDSN(testDef.dsn)
		assert.Equal(t, testDef.ok, ok, testDef.dsn)
		assert.Equal(t, testDef.expected, db, testDef.dsn)
	}
}

func TestStripDatabaseFromDSN(t *testing.T) {
	dsn, ok := serverFromDSN("root@tcp(localhost:3306)/raffled?parseTime=true")
	require.True(t, ok)
	assert.Equal(t, "root@tcp(localhost:3306)/?parseTime=true", dsn)
	dsn, ok = serverFromDSN("root@tcp(localhost:3306)/raffled")
	require.True(t, ok)
	assert.Equal(t, "root@tcp(localhost:3306)/", dsn)
	_, ok = serverFromDSN("nodb")
	assert.False(t, ok)
}

func TestCloseBeforeStart(t *testing.T) {
	store, err := NewWithOptions()
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestServerDefaults(t *testing.T) {
	store, err := New("", 0, "", "", "draws", "", "", nil, nil)
	require.NoError(t, err)
	dsn := store.DSN()
	assert.Contains(t, dsn, "root@tcp(localhost:3306)/draws")
}
