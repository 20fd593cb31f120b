/*
Package storage provides the persistent storage layer for the lottery
engine.

# Storage Organization

The storage uses a key-value database with prefixed namespaces:

  - r/ : gameID (8-byte big-endian) -> Round
  - t/ : ticketID (8-byte big-endian) -> Ticket
  - i/ : gameID (8-byte big-endian) + pickID bytes -> []uint64 ticket ids
    holding that pickset in that round
  - m/ : fixed singleton keys -> CurrentGame, Accounting, RandomnessRequest,
    the apocalypse game id, the last jackpot-seed timestamp and the
    next-ticket-id counter

Everything the engine needs is either a singleton under m/ or keyed by a
numeric id, so no secondary indexes beyond i/ are required.
*/
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vocdoni/lootery-node/lootery"
	"github.com/vocdoni/lootery-node/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var ErrNotFound = errors.New("not found")

// Storage implements lootery.Store on top of a go.vocdoni.io/dvote/db
// key-value database. All mutations go through a single write
// transaction per call, so each SetX/IndexAppend/NextTicketIDs call is
// atomic with respect to concurrent readers.
type Storage struct {
	db    db.Database
	mu    sync.Mutex
	cache *lru.Cache[string, any]
}

// New wraps db in a Storage. The engine itself serialises all calls with
// its own mutex, so Storage's lock only needs to protect the handful of
// operations (index append, ticket-id allocation) that read-modify-write.
func New(backing db.Database) *Storage {
	cache, err := lru.New[string, any](1024)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Storage{db: backing, cache: cache}
}

// Close closes the backing database.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(prefix, key))
	return wTx.Commit()
}

func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	if v, ok := s.cache.Get(cacheKey(prefix, key)); ok {
		data, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("corrupt cache entry")
		}
		return DecodeArtifact(data, out)
	}
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		return ErrNotFound
	}
	s.cache.Add(cacheKey(prefix, key), data)
	return DecodeArtifact(data, out)
}

func cacheKey(prefix, key []byte) string {
	return string(prefix) + string(key)
}

// CurrentGame implements lootery.Store.
func (s *Storage) CurrentGame() (lootery.CurrentGame, error) {
	var cg lootery.CurrentGame
	err := s.getArtifact(metaPrefix, currentGameKey, &cg)
	return cg, err
}

// SetCurrentGame implements lootery.Store.
func (s *Storage) SetCurrentGame(cg lootery.CurrentGame) error {
	return s.setArtifact(metaPrefix, currentGameKey, &cg)
}

// Round implements lootery.Store.
func (s *Storage) Round(gameID uint64) (*lootery.Round, error) {
	r := new(lootery.Round)
	if err := s.getArtifact(roundPrefix, uint64Key(gameID), r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetRound implements lootery.Store.
func (s *Storage) SetRound(gameID uint64, r *lootery.Round) error {
	return s.setArtifact(roundPrefix, uint64Key(gameID), r)
}

// Ticket implements lootery.Store.
func (s *Storage) Ticket(ticketID uint64) (*lootery.Ticket, error) {
	t := new(lootery.Ticket)
	if err := s.getArtifact(ticketPrefix, uint64Key(ticketID), t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetTicket implements lootery.Store.
func (s *Storage) SetTicket(ticketID uint64, t *lootery.Ticket) error {
	return s.setArtifact(ticketPrefix, uint64Key(ticketID), t)
}

// DeleteTicket implements lootery.Store.
func (s *Storage) DeleteTicket(ticketID uint64) error {
	key := uint64Key(ticketID)
	wTx := prefixeddb.NewPrefixedDatabase(s.db, ticketPrefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Delete(key); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(ticketPrefix, key))
	return wTx.Commit()
}

// NextTicketIDs implements lootery.Store.
func (s *Storage) NextTicketIDs(n uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next uint64
	r, err := prefixeddb.NewPrefixedReader(s.db, metaPrefix).Get(nextTicketIDKey)
	if err == nil {
		next = binary.BigEndian.Uint64(r)
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+n)
	wTx := prefixeddb.NewPrefixedDatabase(s.db, metaPrefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(nextTicketIDKey, buf); err != nil {
		return 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// IndexAppend implements lootery.Store.
func (s *Storage) IndexAppend(gameID uint64, pickID *types.BigInt, ticketID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := indexKey(gameID, pickID.Bytes())
	var ids []uint64
	if data, err := prefixeddb.NewPrefixedReader(s.db, indexPrefix).Get(key); err == nil {
		if err := DecodeArtifact(data, &ids); err != nil {
			return fmt.Errorf("decode index entry: %w", err)
		}
	}
	ids = append(ids, ticketID)

	data, err := EncodeArtifact(ids)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedDatabase(s.db, indexPrefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(indexPrefix, key))
	return wTx.Commit()
}

// IndexCount implements lootery.Store.
func (s *Storage) IndexCount(gameID uint64, pickID *types.BigInt) (uint64, error) {
	key := indexKey(gameID, pickID.Bytes())
	var ids []uint64
	if err := s.getArtifact(indexPrefix, key, &ids); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(len(ids)), nil
}

// Accounting implements lootery.Store.
func (s *Storage) Accounting() (*lootery.Accounting, error) {
	a := new(lootery.Accounting)
	if err := s.getArtifact(metaPrefix, accountingKey, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SetAccounting implements lootery.Store.
func (s *Storage) SetAccounting(a *lootery.Accounting) error {
	return s.setArtifact(metaPrefix, accountingKey, a)
}

// RandomnessRequest implements lootery.Store.
func (s *Storage) RandomnessRequest() (lootery.RandomnessRequest, error) {
	var r lootery.RandomnessRequest
	err := s.getArtifact(metaPrefix, randomnessRequestKey, &r)
	if errors.Is(err, ErrNotFound) {
		return lootery.RandomnessRequest{}, nil
	}
	return r, err
}

// SetRandomnessRequest implements lootery.Store.
func (s *Storage) SetRandomnessRequest(r lootery.RandomnessRequest) error {
	return s.setArtifact(metaPrefix, randomnessRequestKey, &r)
}

// ApocalypseGameID implements lootery.Store.
func (s *Storage) ApocalypseGameID() (uint64, error) {
	var id uint64
	err := s.getArtifact(metaPrefix, apocalypseGameIDKey, &id)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return id, err
}

// SetApocalypseGameID implements lootery.Store.
func (s *Storage) SetApocalypseGameID(id uint64) error {
	return s.setArtifact(metaPrefix, apocalypseGameIDKey, &id)
}

// LastSeededAt implements lootery.Store.
func (s *Storage) LastSeededAt() (int64, error) {
	var t int64
	err := s.getArtifact(metaPrefix, lastSeededAtKey, &t)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return t, err
}

// SetLastSeededAt implements lootery.Store.
func (s *Storage) SetLastSeededAt(t int64) error {
	return s.setArtifact(metaPrefix, lastSeededAtKey, &t)
}
