// Package journal keeps a local history of extrinsic submissions.
package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	xdr "github.com/nullstyle/go-xdr/xdr3"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap/zapcore"

	"github.com/subtensor-tools/subreg/chain"
)

var ErrNotFound = leveldb.ErrNotFound

var (
	recordPrefix = []byte("rec/")
	idPrefix     = []byte("id/")
)

// Record describes one extrinsic submission.
type Record struct {
	ID            string
	UnixNano      int64
	Module        string
	Function      string
	Signer        string
	SignWith      string
	Accepted      bool
	Status        string
	Error         string
	ExtrinsicHash string
	BlockHash     string
}

// NewRecord builds the record of submitting call.
func NewRecord(call *chain.Call, signer string, opts chain.SendOptions, result chain.SubmissionResult) Record {
	r := Record{
		ID:       uuid.NewString(),
		UnixNano: time.Now().UnixNano(),
		Module:   call.Module,
		Function: call.Function,
		Signer:   signer,
		SignWith: opts.SignWith.String(),
		Accepted: result.Accepted,
		Status:   string(result.Status),
		Error:    result.Error,
	}
	if !result.ExtrinsicHash.IsZero() {
		r.ExtrinsicHash = result.ExtrinsicHash.String()
	}
	if !result.BlockHash.IsZero() {
		r.BlockHash = result.BlockHash.String()
	}
	return r
}

func (r *Record) Time() time.Time {
	return time.Unix(0, r.UnixNano)
}

func (r *Record) Success() bool {
	return r.Accepted && r.Error == ""
}

// implement zap.ObjectMarshaler interface.
func (r *Record) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", r.ID)
	enc.AddTime("time", r.Time())
	enc.AddString("call", r.Module+"."+r.Function)
	enc.AddString("signer", r.Signer)
	enc.AddString("status", r.Status)
	if r.Error != "" {
		enc.AddString("error", r.Error)
	}
	return nil
}

// Journal persists submission records in leveldb, ordered by time.
type Journal struct {
	db *leveldb.DB
}

func Open(dbPath string) (*Journal, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database @ %s: %w", dbPath, err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func recordKey(r *Record) ([]byte, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", r.ID, err)
	}
	key := make([]byte, 0, len(recordPrefix)+8+16)
	key = append(key, recordPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.UnixNano))
	return append(key, id[:]...), nil
}

func (j *Journal) Save(ctx context.Context, r Record) error {
	key, err := recordKey(&r)
	if err != nil {
		return err
	}
	serialized, err := serializeRecord(r)
	if err != nil {
		return fmt.Errorf("failed serializing record: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put(key, serialized)
	batch.Put(append(append([]byte{}, idPrefix...), r.ID...), key)
	if err := j.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("storing record in DB: %w", err)
	}
	return nil
}

func (j *Journal) Get(ctx context.Context, id string) (*Record, error) {
	key, err := j.db.Get(append(append([]byte{}, idPrefix...), id...), nil)
	if err != nil {
		return nil, fmt.Errorf("get record %s from DB: %w", id, err)
	}
	data, err := j.db.Get(key, nil)
	if err != nil {
		return nil, fmt.Errorf("get record %s from DB: %w", id, err)
	}
	return deserializeRecord(data)
}

// List returns up to limit records, newest first. A zero limit returns all records.
func (j *Journal) List(ctx context.Context, limit int) ([]Record, error) {
	iter := j.db.NewIterator(util.BytesPrefix(recordPrefix), nil)
	defer iter.Release()

	var records []Record
	for ok := iter.Last(); ok; ok = iter.Prev() {
		if limit > 0 && len(records) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := deserializeRecord(iter.Value())
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func serializeRecord(r Record) ([]byte, error) {
	var dataBuf bytes.Buffer
	_, err := xdr.Marshal(&dataBuf, r)
	if err != nil {
		return nil, fmt.Errorf("serialization failure: %v", err)
	}
	return dataBuf.Bytes(), nil
}

func deserializeRecord(data []byte) (*Record, error) {
	r := &Record{}
	if _, err := xdr.Unmarshal(bytes.NewReader(data), r); err != nil {
		return nil, fmt.Errorf("failed to deserialize: %v", err)
	}
	return r, nil
}
