// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credvault.
//
// go-credvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGet(t *testing.T) {
	backend := NewMemory()

	record := []byte("record")
	require.NoError(t, backend.Put("secrets/id/s1", record, nil))

	// Stored value is a copy: mutating the caller's slice after Put
	// must not reach the backend.
	record[0] = 'X'
	value, err := backend.Get("secrets/id/s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), value)

	// Returned value is a copy too.
	value[0] = 'Y'
	again, err := backend.Get("secrets/id/s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), again)
}

func TestMemory_GetNotFound(t *testing.T) {
	backend := NewMemory()
	_, err := backend.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Overwrite(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Put("key", []byte("v1"), nil))
	require.NoError(t, backend.Put("key", []byte("v2"), nil))

	value, err := backend.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func TestMemory_Delete(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Put("key", []byte("value"), nil))
	require.NoError(t, backend.Delete("key"))

	_, err := backend.Get("key")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, backend.Delete("key"), ErrNotFound)
}

func TestMemory_List(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Put("wrappers/s1/b", []byte("2"), nil))
	require.NoError(t, backend.Put("wrappers/s1/a", []byte("1"), nil))
	require.NoError(t, backend.Put("wrappers/s2/a", []byte("3"), nil))

	// Keys come back sorted, matching the file backend's listing order.
	keys, err := backend.List("wrappers/s1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"wrappers/s1/a", "wrappers/s1/b"}, keys)

	all, err := backend.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemory_Exists(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Put("key", []byte("value"), nil))

	exists, err := backend.Exists("key")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = backend.Exists("missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemory_Closed(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Close())

	_, err := backend.Get("key")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, backend.Put("key", nil, nil), ErrClosed)
	assert.ErrorIs(t, backend.Delete("key"), ErrClosed)
	_, err = backend.List("")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.Exists("key")
	assert.ErrorIs(t, err, ErrClosed)

	// Double close is a no-op.
	assert.NoError(t, backend.Close())
}
