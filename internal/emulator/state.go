package emulator

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/storage"
	"github.com/LeJamon/shalltest/internal/storage/database"
	"github.com/LeJamon/shalltest/internal/value"
)

// Key layout:
//
//	a/<addr>              account record
//	n/<name>              account address by name
//	s/<addr>/<dom>/<id>   stored value
//	m/height              latest sealed block height
const (
	accountPrefix = "a/"
	namePrefix    = "n/"
	storagePrefix = "s/"
)

var metaHeightKey = []byte("m/height")

func accountKey(addr crypto.Address) []byte {
	return []byte(accountPrefix + hex.EncodeToString(addr[:]))
}

func nameKey(name string) []byte {
	return []byte(namePrefix + name)
}

func accountStoragePrefix(addr crypto.Address) []byte {
	return []byte(storagePrefix + hex.EncodeToString(addr[:]))
}

func storageKey(addr crypto.Address, p Path) string {
	return string(accountStoragePrefix(addr)) + p.String()
}

// state reads and encodes values held in the database.
type state struct {
	db    database.DB
	codec *storage.Codec
}

func (s *state) encode(v any) ([]byte, error) {
	raw, err := value.Encode(v)
	if err != nil {
		return nil, err
	}
	return s.codec.Encode(raw)
}

func (s *state) decode(stored []byte) (any, error) {
	raw, err := s.codec.Decode(stored)
	if err != nil {
		return nil, err
	}
	return value.Decode(raw)
}

func (s *state) read(ctx context.Context, key []byte) (any, bool, error) {
	stored, err := s.db.Read(ctx, key)
	if errors.Is(err, database.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := s.decode(stored)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

func (s *state) paths(ctx context.Context, addr crypto.Address) ([]string, error) {
	prefix := accountStoragePrefix(addr)
	it, err := s.db.Iterator(ctx, prefix, database.PrefixEnd(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []string
	for it.Next() {
		out = append(out, string(it.Key()[len(prefix):]))
	}
	return out, it.Error()
}

func (s *state) height(ctx context.Context) (uint64, error) {
	b, err := s.db.Read(ctx, metaHeightKey)
	if errors.Is(err, database.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("corrupt block height record")
	}
	return binary.BigEndian.Uint64(b), nil
}

func heightOp(h uint64) database.BatchOperation {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, h)
	return database.Put(metaHeightKey, b)
}

// meter counts compute units spent by a handler.
type meter struct {
	limit    uint64
	used     uint64
	exceeded error
}

func (m *meter) charge(units uint64) error {
	if m.exceeded != nil {
		return m.exceeded
	}
	m.used += units
	if m.used > m.limit {
		m.exceeded = fmt.Errorf("%w: limit %d", ErrComputeLimitExceeded, m.limit)
		return m.exceeded
	}
	return nil
}

type pendingWrite struct {
	data    []byte
	deleted bool
}

// view is the storage seen by one handler invocation. Writes are buffered
// and only reach the database when the emulator commits them.
type view struct {
	ctx      context.Context
	state    *state
	meter    *meter
	readOnly bool
	writes   map[string]pendingWrite
}

func newView(ctx context.Context, s *state, limit uint64, readOnly bool) *view {
	return &view{
		ctx:      ctx,
		state:    s,
		meter:    &meter{limit: limit},
		readOnly: readOnly,
		writes:   make(map[string]pendingWrite),
	}
}

func (v *view) begin() error {
	if err := v.ctx.Err(); err != nil {
		return err
	}
	return v.meter.charge(1)
}

func (v *view) load(addr crypto.Address, p Path) (any, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}
	key := storageKey(addr, p)
	if w, ok := v.writes[key]; ok {
		if w.deleted {
			return nil, fmt.Errorf("%w: %s in %s", ErrPathNotFound, p, addr)
		}
		return v.state.decode(w.data)
	}
	val, ok, err := v.state.read(v.ctx, []byte(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrPathNotFound, p, addr)
	}
	return val, nil
}

func (v *view) save(addr crypto.Address, p Path, val any) error {
	if err := v.begin(); err != nil {
		return err
	}
	if v.readOnly {
		return ErrReadOnly
	}
	data, err := v.state.encode(val)
	if err != nil {
		return err
	}
	v.writes[storageKey(addr, p)] = pendingWrite{data: data}
	return nil
}

func (v *view) remove(addr crypto.Address, p Path) (any, error) {
	if v.readOnly {
		return nil, ErrReadOnly
	}
	old, err := v.load(addr, p)
	if err != nil {
		return nil, err
	}
	v.writes[storageKey(addr, p)] = pendingWrite{deleted: true}
	return old, nil
}

func (v *view) paths(addr crypto.Address) ([]string, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}
	stored, err := v.state.paths(v.ctx, addr)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(stored))
	for _, p := range stored {
		set[p] = true
	}
	prefix := string(accountStoragePrefix(addr))
	for key, w := range v.writes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		set[key[len(prefix):]] = !w.deleted
	}

	out := make([]string, 0, len(set))
	for p, present := range set {
		if present {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (v *view) ops() []database.BatchOperation {
	keys := make([]string, 0, len(v.writes))
	for k := range v.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ops := make([]database.BatchOperation, 0, len(keys))
	for _, k := range keys {
		w := v.writes[k]
		if w.deleted {
			ops = append(ops, database.Del([]byte(k)))
		} else {
			ops = append(ops, database.Put([]byte(k), w.data))
		}
	}
	return ops
}
