package store

import (
	"github.com/google/orderedcode"

	"github.com/ecsync/ecsync/types"
)

// Keyspace prefixes. Values are part of the on-disk format; do not renumber.
const (
	prefixToken     = int64(1)
	prefixBlock     = int64(2)
	prefixSummary   = int64(3)
	prefixChainHead = int64(4)
)

func tokenKey(token types.TokenID) []byte {
	key, err := orderedcode.Append(nil, prefixToken, uint64(token))
	if err != nil {
		panic(err)
	}
	return key
}

func blockKey(id types.BlockID) []byte {
	key, err := orderedcode.Append(nil, prefixBlock, uint64(id))
	if err != nil {
		panic(err)
	}
	return key
}

func summaryKey(id types.BlockID) []byte {
	key, err := orderedcode.Append(nil, prefixSummary, uint64(id))
	if err != nil {
		panic(err)
	}
	return key
}

func chainHeadKey() []byte {
	key, err := orderedcode.Append(nil, prefixChainHead)
	if err != nil {
		panic(err)
	}
	return key
}
