// Copyright 2025 Poiesic Systems
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


package core

import (
	"errors"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// ErrMalformedRecord indicates encoded bytes that cannot describe a valid record.
var ErrMalformedRecord = errors.New("malformed record")

// MUS serializers for the persisted domain types. Field order is the wire
// order; append new fields at the end.
var (
	ChunkMUS        = chunkMUS{}
	EntityMUS       = entityMUS{}
	RelationshipMUS = relationshipMUS{}
	CheckpointMUS   = checkpointMUS{}
)

type chunkMUS struct{}

func (chunkMUS) Size(c Chunk) (size int) {
	size += ord.String.Size(c.ID)
	size += ord.String.Size(c.Content)
	size += ord.String.Size(c.SourceDocumentID)
	size += varint.Int64.Size(int64(c.PositionIndex))
	size += sizeFloats(c.Embedding)
	size += sizeMetadata(c.Metadata)
	size += varint.Uint64.Size(c.Ordinal)
	size += sizeTime(c.InsertedAt)
	return size + sizeTime(c.UpdatedAt)
}

func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n += ord.String.Marshal(c.ID, bs[n:])
	n += ord.String.Marshal(c.Content, bs[n:])
	n += ord.String.Marshal(c.SourceDocumentID, bs[n:])
	n += varint.Int64.Marshal(int64(c.PositionIndex), bs[n:])
	n += marshalFloats(c.Embedding, bs[n:])
	n += marshalMetadata(c.Metadata, bs[n:])
	n += varint.Uint64.Marshal(c.Ordinal, bs[n:])
	n += marshalTime(c.InsertedAt, bs[n:])
	return n + marshalTime(c.UpdatedAt, bs[n:])
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var m int
	if c.ID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if c.Content, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if c.SourceDocumentID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	var pos int64
	if pos, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	c.PositionIndex = int(pos)
	n += m
	if c.Embedding, m, err = unmarshalFloats(bs[n:]); err != nil {
		return
	}
	n += m
	if c.Metadata, m, err = unmarshalMetadata(bs[n:]); err != nil {
		return
	}
	n += m
	if c.Ordinal, m, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if c.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += m
	c.UpdatedAt, m, err = unmarshalTime(bs[n:])
	n += m
	return
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type entityMUS struct{}

func (entityMUS) Size(e Entity) (size int) {
	size += ord.String.Size(e.Name)
	size += varint.Int64.Size(int64(e.Type))
	size += ord.String.Size(e.Description)
	return size + sizeStrings(e.SourceChunkIDs)
}

func (entityMUS) Marshal(e Entity, bs []byte) (n int) {
	n += ord.String.Marshal(e.Name, bs[n:])
	n += varint.Int64.Marshal(int64(e.Type), bs[n:])
	n += ord.String.Marshal(e.Description, bs[n:])
	return n + marshalStrings(e.SourceChunkIDs, bs[n:])
}

func (entityMUS) Unmarshal(bs []byte) (e Entity, n int, err error) {
	var m int
	if e.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	var t int64
	if t, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	e.Type = EntityType(t)
	n += m
	if e.Description, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	e.SourceChunkIDs, m, err = unmarshalStrings(bs[n:])
	n += m
	return
}

func (s entityMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type relationshipMUS struct{}

func (relationshipMUS) Size(r Relationship) (size int) {
	size += ord.String.Size(r.Source)
	size += ord.String.Size(r.Target)
	size += ord.String.Size(r.Type)
	size += ord.String.Size(r.Description)
	return size + sizeStrings(r.SourceChunkIDs)
}

func (relationshipMUS) Marshal(r Relationship, bs []byte) (n int) {
	n += ord.String.Marshal(r.Source, bs[n:])
	n += ord.String.Marshal(r.Target, bs[n:])
	n += ord.String.Marshal(r.Type, bs[n:])
	n += ord.String.Marshal(r.Description, bs[n:])
	return n + marshalStrings(r.SourceChunkIDs, bs[n:])
}

func (relationshipMUS) Unmarshal(bs []byte) (r Relationship, n int, err error) {
	var m int
	if r.Source, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if r.Target, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if r.Type, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if r.Description, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	r.SourceChunkIDs, m, err = unmarshalStrings(bs[n:])
	n += m
	return
}

func (s relationshipMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type checkpointMUS struct{}

func (checkpointMUS) Size(c Checkpoint) int {
	return ord.String.Size(c.ProcessorType) +
		varint.Uint64.Size(c.LastOrdinal) +
		sizeTime(c.UpdatedAt)
}

func (checkpointMUS) Marshal(c Checkpoint, bs []byte) (n int) {
	n += ord.String.Marshal(c.ProcessorType, bs[n:])
	n += varint.Uint64.Marshal(c.LastOrdinal, bs[n:])
	return n + marshalTime(c.UpdatedAt, bs[n:])
}

func (checkpointMUS) Unmarshal(bs []byte) (c Checkpoint, n int, err error) {
	var m int
	if c.ProcessorType, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if c.LastOrdinal, m, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	c.UpdatedAt, m, err = unmarshalTime(bs[n:])
	n += m
	return
}

func (s checkpointMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// Field helpers. Collections are a varint length followed by the elements.

func sizeLen(l int) int {
	return varint.Uint64.Size(uint64(l))
}

func unmarshalLen(bs []byte) (l int, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return 0, n, err
	}
	// Every element occupies at least one byte.
	if u > uint64(len(bs)-n) {
		return 0, n, ErrMalformedRecord
	}
	return int(u), n, nil
}

func sizeFloats(v []float32) int {
	size := sizeLen(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalFloats(v []float32, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalFloats(bs []byte) (v []float32, n int, err error) {
	l, n, err := unmarshalLen(bs)
	if err != nil || l == 0 {
		return nil, n, err
	}
	v = make([]float32, l)
	for i := range v {
		var m int
		if v[i], m, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += m
	}
	return v, n, nil
}

func sizeStrings(v []string) int {
	size := sizeLen(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

func marshalStrings(v []string, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func unmarshalStrings(bs []byte) (v []string, n int, err error) {
	l, n, err := unmarshalLen(bs)
	if err != nil || l == 0 {
		return nil, n, err
	}
	v = make([]string, l)
	for i := range v {
		var m int
		if v[i], m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += m
	}
	return v, n, nil
}

// Metadata is written in key order so equal maps encode identically.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sizeMetadata(m map[string]string) int {
	size := sizeLen(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

func marshalMetadata(m map[string]string, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(m)), bs)
	for _, k := range sortedKeys(m) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return n
}

func unmarshalMetadata(bs []byte) (m map[string]string, n int, err error) {
	l, n, err := unmarshalLen(bs)
	if err != nil || l == 0 {
		return nil, n, err
	}
	m = make(map[string]string, l)
	for i := 0; i < l; i++ {
		var k, v string
		var c int
		if k, c, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += c
		if v, c, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += c
		m[k] = v
	}
	return m, n, nil
}

// Timestamps are stored as Unix microseconds; zero means unset.
func sizeTime(t time.Time) int {
	return varint.Int64.Size(unixMicro(t))
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(unixMicro(t), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
