package tides

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SchemaVersion is written into every encoded snapshot. Decoders refuse
// versions newer than their own.
const SchemaVersion = 1

var ErrSchema = errors.New("unsupported snapshot schema")

type snapshotRecord struct {
	Schema  int           `json:"schema"`
	Station Station       `json:"station"`
	Levels  []levelRecord `json:"levels"`
	Average float64       `json:"average"`
	Updated int64         `json:"updated"` // unix millis, 0 if never
}

type levelRecord struct {
	T int64     `json:"t"` // unix seconds
	H float64   `json:"h"`
	S Situation `json:"s"`
}

// EncodeSnapshot serializes a snapshot with MessagePack.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	rec := snapshotRecord{
		Schema:  SchemaVersion,
		Station: s.Station,
		Levels:  make([]levelRecord, len(s.Levels)),
		Average: s.Average,
	}
	if !s.Updated.IsZero() {
		rec.Updated = s.Updated.UnixMilli()
	}
	for i, l := range s.Levels {
		rec.Levels[i] = levelRecord{T: l.Time.Unix(), H: l.Height, S: l.Situation}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&rec); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot parses bytes written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var rec snapshotRecord
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&rec); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if rec.Schema < 1 || rec.Schema > SchemaVersion {
		return Snapshot{}, fmt.Errorf("%w: version %d", ErrSchema, rec.Schema)
	}
	if rec.Station.ID == "" {
		return Snapshot{}, fmt.Errorf("decode snapshot: missing station id")
	}

	s := Snapshot{
		Station: rec.Station,
		Average: rec.Average,
	}
	if rec.Updated != 0 {
		s.Updated = time.UnixMilli(rec.Updated).UTC()
	}
	if len(rec.Levels) > 0 {
		s.Levels = make([]WaterLevel, len(rec.Levels))
		for i, l := range rec.Levels {
			if !l.S.Valid() {
				return Snapshot{}, fmt.Errorf("decode snapshot: level %d: invalid situation %d", i, l.S)
			}
			s.Levels[i] = WaterLevel{Time: time.Unix(l.T, 0).UTC(), Height: l.H, Situation: l.S}
		}
	}
	if !sorted(s.Levels) {
		return Snapshot{}, fmt.Errorf("decode snapshot: levels out of order")
	}
	return s, nil
}
