package badger

import (
	"bytes"
	"encoding/binary"

	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// Key prefixes for different data types
const (
	chunkPrefix        = "chunk:"
	chunkOrdinalPrefix = "chunkord:"
	chunkOrdinalSeq    = "chunkseq"
	entityPrefix       = "entity:"
	relationshipPrefix = "rel:"
	adjacencyPrefix    = "adj:"
	checkpointPrefix   = "chkpt:"
)

// Separates the variable-length parts of composite keys.
const keySep = 0x00

const (
	dirOut = 'o'
	dirIn  = 'i'
)

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id string) []byte {
	return append([]byte(chunkPrefix), id...)
}

// makeChunkOrdinalKey generates a key for the insertion-order index.
// Format: prefix + big-endian ordinal, so lexicographic order is insertion order.
func makeChunkOrdinalKey(ordinal uint64) []byte {
	buf := make([]byte, len(chunkOrdinalPrefix)+8)
	offset := copy(buf, chunkOrdinalPrefix)
	binary.BigEndian.PutUint64(buf[offset:], ordinal)
	return buf
}

func makeEntityKey(key string) []byte {
	return append([]byte(entityPrefix), key...)
}

// makeRelationshipKey generates a key for a relationship.
// Format: prefix source 0x00 target 0x00 type
func makeRelationshipKey(key core.RelationshipKey) []byte {
	buf := make([]byte, 0, len(relationshipPrefix)+len(key.Source)+len(key.Target)+len(key.Type)+2)
	buf = append(buf, relationshipPrefix...)
	buf = append(buf, key.Source...)
	buf = append(buf, keySep)
	buf = append(buf, key.Target...)
	buf = append(buf, keySep)
	return append(buf, key.Type...)
}

// makeAdjacencyPrefix generates the scan prefix for all edges of an entity.
// Format: prefix entity 0x00
func makeAdjacencyPrefix(entity string) []byte {
	buf := make([]byte, 0, len(adjacencyPrefix)+len(entity)+1)
	buf = append(buf, adjacencyPrefix...)
	buf = append(buf, entity...)
	return append(buf, keySep)
}

// makeAdjacencyKey generates an adjacency entry.
// Format: prefix entity 0x00 neighbor 0x00 type 0x00 direction
func makeAdjacencyKey(entity string, edge storage.Edge) []byte {
	buf := makeAdjacencyPrefix(entity)
	buf = append(buf, edge.Neighbor...)
	buf = append(buf, keySep)
	buf = append(buf, edge.Type...)
	buf = append(buf, keySep)
	if edge.Outgoing {
		return append(buf, dirOut)
	}
	return append(buf, dirIn)
}

// parseAdjacencySuffix decodes the part of an adjacency key after its prefix.
func parseAdjacencySuffix(suffix []byte) (storage.Edge, bool) {
	parts := bytes.Split(suffix, []byte{keySep})
	if len(parts) != 3 || len(parts[2]) != 1 {
		return storage.Edge{}, false
	}
	return storage.Edge{
		Neighbor: string(parts[0]),
		Type:     string(parts[1]),
		Outgoing: parts[2][0] == dirOut,
	}, true
}

func makeCheckpointKey(processorType string) []byte {
	return append([]byte(checkpointPrefix), processorType...)
}
