// Copyright 2026 The etcd Authors
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

package writer

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/oplog"
)

func idValue(t *testing.T, v any) bson.RawValue {
	return mustDoc(t, bson.D{{Key: "_id", Value: v}}).Lookup("_id")
}

func TestWriterIDSameDocumentSameWriter(t *testing.T) {
	cache := catalog.NewPropertiesCache(newFakeCatalog(&catalog.CollectionInfo{NS: "test.coll"}))

	for numWriters := uint32(1); numWriters <= 32; numWriters++ {
		for i := 0; i < 20; i++ {
			id := fmt.Sprintf("doc-%d", i)
			ins, err := WriterID(insertOp(t, "test.coll", id), cache, numWriters, nil)
			require.NoError(t, err)
			upd, err := WriterID(updateOp(t, "test.coll", id), cache, numWriters, nil)
			require.NoError(t, err)
			del, err := WriterID(deleteOp(t, "test.coll", id), cache, numWriters, nil)
			require.NoError(t, err)

			assert.Less(t, ins, numWriters)
			assert.Equal(t, ins, upd)
			assert.Equal(t, ins, del)
		}
	}
}

func TestWriterIDSpreadsDocuments(t *testing.T) {
	cache := catalog.NewPropertiesCache(newFakeCatalog(&catalog.CollectionInfo{NS: "test.coll"}))

	lanes := make(map[uint32]bool)
	for i := 0; i < 64; i++ {
		id, err := WriterID(insertOp(t, "test.coll", i), cache, 16, nil)
		require.NoError(t, err)
		lanes[id] = true
	}
	assert.Greater(t, len(lanes), 1)
}

func TestWriterIDCappedCollection(t *testing.T) {
	cache := catalog.NewPropertiesCache(newFakeCatalog(
		&catalog.CollectionInfo{NS: "test.capped", Capped: true},
		&catalog.CollectionInfo{NS: "test.clustered", Capped: true, Clustered: true},
	))
	vectors := NewVectors(16)

	var inserted []*oplog.Entry
	first := uint32(0)
	for i := 0; i < 64; i++ {
		op := insertOp(t, "test.capped", i)
		inserted = append(inserted, op)
		id, err := AddToWriterVector(op, vectors, cache, nil)
		require.NoError(t, err)
		if i == 0 {
			first = id
		}
		assert.Equal(t, first, id, "capped inserts must share one writer")
		assert.True(t, op.IsForCappedCollection())
	}
	assert.Equal(t, inserted, entriesOf(vectors[first]))

	lanes := make(map[uint32]bool)
	for i := 0; i < 64; i++ {
		op := insertOp(t, "test.clustered", i)
		id, err := WriterID(op, cache, 16, nil)
		require.NoError(t, err)
		lanes[id] = true
		assert.True(t, op.IsForCappedCollection())
	}
	assert.Greater(t, len(lanes), 1, "clustered capped collections hash on _id")

	del := deleteOp(t, "test.capped", 1)
	_, err := WriterID(del, cache, 16, nil)
	require.NoError(t, err)
	assert.False(t, del.IsForCappedCollection())
}

func TestWriterIDIsDeterministic(t *testing.T) {
	cache := catalog.NewPropertiesCache(newFakeCatalog(&catalog.CollectionInfo{NS: "test.coll"}))
	op := updateOp(t, "test.coll", bson.D{{Key: "a", Value: 1}})

	a, err := WriterID(op, cache, 7, nil)
	require.NoError(t, err)
	b, err := WriterID(op, cache, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriterIDForced(t *testing.T) {
	cache := catalog.NewPropertiesCache(newFakeCatalog())
	force := uint32(11)

	id, err := WriterID(insertOp(t, "test.coll", 1), cache, 4, &force)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), id)
}

func TestWriterIDCommandsSkipCatalog(t *testing.T) {
	fc := newFakeCatalog()
	cache := catalog.NewPropertiesCache(fc)

	_, err := WriterID(commandOp(t, "test", oplog.CommandDrop, "coll"), cache, 4, nil)
	require.NoError(t, err)
	_, err = WriterID(&oplog.Entry{OpType: oplog.OpNoop}, cache, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, fc.lookups)
}

func TestWriterIDByUUID(t *testing.T) {
	cache := catalog.NewPropertiesCache(newFakeCatalog())
	ui := uuid.New()
	a := insertOp(t, "", 1)
	a.UUID = &ui
	b := deleteOp(t, "", 1)
	b.UUID = &ui

	ida, err := WriterID(a, cache, 8, nil)
	require.NoError(t, err)
	idb, err := WriterID(b, cache, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, ida, idb)
}

func TestWriterIDCappedByUUID(t *testing.T) {
	logID := uuid.New()
	tests := []struct {
		name string
		ns   oplog.Namespace
	}{
		{"no ns", ""},
		{"stale ns", "app.stale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := catalog.NewPropertiesCache(newFakeCatalog(
				&catalog.CollectionInfo{NS: "app.log", UUID: logID, Capped: true},
			))
			lanes := make(map[uint32]struct{})
			for i := 0; i < 32; i++ {
				op := insertOp(t, tt.ns, i)
				op.UUID = &logID
				id, err := WriterID(op, cache, 8, nil)
				require.NoError(t, err)
				lanes[id] = struct{}{}
				assert.True(t, op.IsForCappedCollection())
			}
			assert.Len(t, lanes, 1)

			byName, err := WriterID(insertOp(t, "app.log", 100), cache, 8, nil)
			require.NoError(t, err)
			assert.Contains(t, lanes, byName)
		})
	}
}

func TestElementHasherEquivalences(t *testing.T) {
	h := newElementHasher(nil)

	assert.Equal(t, h.hash(idValue(t, int32(1))), h.hash(idValue(t, int64(1))))
	assert.Equal(t, h.hash(idValue(t, int32(1))), h.hash(idValue(t, 1.0)))
	assert.NotEqual(t, h.hash(idValue(t, 1.5)), h.hash(idValue(t, 1)))
	assert.Equal(t,
		h.hash(idValue(t, bson.D{{Key: "a", Value: 1}})),
		h.hash(idValue(t, bson.D{{Key: "b", Value: 1}})),
		"field names are ignored")
	assert.NotEqual(t, h.hash(idValue(t, "1")), h.hash(idValue(t, 1)))
	assert.NotEqual(t, h.hash(idValue(t, "ABC")), h.hash(idValue(t, "abc")))
	assert.Equal(t, h.hash(idValue(t, nil)), h.hash(idValue(t, nil)))
	assert.NotEqual(t, h.hash(bson.RawValue{}), h.hash(idValue(t, nil)))
}

func TestElementHasherDecimal(t *testing.T) {
	h := newElementHasher(nil)
	dec := func(s string) bson.RawValue { return idValue(t, mustDecimal(t, s)) }

	tests := []struct {
		dec   string
		equal any
	}{
		{"1", int32(1)},
		{"1.00", int64(1)},
		{"-0", 0},
		{"1E3", 1000.0},
		{"-42.0", -42},
	}
	for _, tt := range tests {
		t.Run(tt.dec, func(t *testing.T) {
			assert.Equal(t, h.hash(idValue(t, tt.equal)), h.hash(dec(tt.dec)))
		})
	}
	assert.NotEqual(t, h.hash(dec("1.5")), h.hash(idValue(t, 1)))
	assert.NotEqual(t, h.hash(dec("1E30")), h.hash(idValue(t, 0)))
	assert.Equal(t, h.hash(dec("NaN")), h.hash(dec("NaN")))

	cache := catalog.NewPropertiesCache(newFakeCatalog())
	byDecimal := &oplog.Entry{OpType: oplog.OpDelete, NS: "test.coll", Object: mustDoc(t, bson.D{{Key: "_id", Value: mustDecimal(t, "7")}})}
	a, err := WriterID(byDecimal, cache, 16, nil)
	require.NoError(t, err)
	b, err := WriterID(insertOp(t, "test.coll", 7), cache, 16, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func mustDecimal(t *testing.T, s string) bson.Decimal128 {
	d, err := bson.ParseDecimal128(s)
	require.NoError(t, err)
	return d
}

func TestElementHasherCollation(t *testing.T) {
	collation := &catalog.Collation{Locale: "en", Strength: 2}
	h := newElementHasher(collation.NewCollator())

	assert.Equal(t, h.hash(idValue(t, "ABC")), h.hash(idValue(t, "abc")))
	assert.NotEqual(t, h.hash(idValue(t, "abc")), h.hash(idValue(t, "abd")))
	assert.Equal(t,
		h.hash(idValue(t, bson.D{{Key: "k", Value: "Key"}})),
		h.hash(idValue(t, bson.D{{Key: "K", Value: "KEY"}})))
}

func TestCollatedCollectionSameWriter(t *testing.T) {
	cache := catalog.NewPropertiesCache(newFakeCatalog(&catalog.CollectionInfo{
		NS:        "test.ci",
		Collation: &catalog.Collation{Locale: "en", Strength: 2},
	}))
	for numWriters := uint32(1); numWriters <= 16; numWriters++ {
		a, err := WriterID(insertOp(t, "test.ci", "Alice"), cache, numWriters, nil)
		require.NoError(t, err)
		b, err := WriterID(deleteOp(t, "test.ci", "ALICE"), cache, numWriters, nil)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}
