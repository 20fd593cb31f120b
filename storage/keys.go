package storage

import "encoding/binary"

// Prefixes partition the backing key-value database into independent
// namespaces so each record kind can be iterated or reasoned about in
// isolation.
var (
	roundPrefix  = []byte("r/")
	ticketPrefix = []byte("t/")
	indexPrefix  = []byte("i/")
	metaPrefix   = []byte("m/")
)

// Singleton keys living under metaPrefix.
var (
	currentGameKey       = []byte("current")
	accountingKey        = []byte("accounting")
	randomnessRequestKey = []byte("randomness")
	apocalypseGameIDKey  = []byte("apocalypse")
	lastSeededAtKey      = []byte("lastSeeded")
	nextTicketIDKey      = []byte("nextTicket")
)

// uint64Key encodes n as a fixed-width big-endian key so round and ticket
// records iterate in numeric order.
func uint64Key(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// indexKey derives the index-record key for a (gameID, pickID) pair. The
// fixed-width gameID prefix guarantees distinct games never collide; the
// pickID's minimal big-endian encoding is unambiguous among picksets
// within the same game.
func indexKey(gameID uint64, pickIDBytes []byte) []byte {
	k := make([]byte, 8+len(pickIDBytes))
	binary.BigEndian.PutUint64(k, gameID)
	copy(k[8:], pickIDBytes)
	return k
}
