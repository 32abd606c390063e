package syncer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/spencer-p/tidewatch/pkg/tides"
)

const envelopeVersion = 1

// Envelope wraps a snapshot on the wire.
type Envelope struct {
	// ID is unique per send, so redeliveries of one send can be told apart
	// from a new send of identical data.
	ID         uuid.UUID
	Sender     string
	SentAt     time.Time
	NewStation bool
}

type envelopeRecord struct {
	Version    int    `msgpack:"v"`
	ID         string `msgpack:"id"`
	Sender     string `msgpack:"from"`
	SentAt     int64  `msgpack:"at"`
	NewStation bool   `msgpack:"new_station"`
	Snapshot   []byte `msgpack:"snapshot"`
}

// EncodeEnvelope serializes env around s.
func EncodeEnvelope(env Envelope, s tides.Snapshot) ([]byte, error) {
	snap, err := tides.EncodeSnapshot(s)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&envelopeRecord{
		Version:    envelopeVersion,
		ID:         env.ID.String(),
		Sender:     env.Sender,
		SentAt:     env.SentAt.UnixMilli(),
		NewStation: env.NewStation,
		Snapshot:   snap,
	})
}

// DecodeEnvelope reverses EncodeEnvelope.
func DecodeEnvelope(data []byte) (Envelope, tides.Snapshot, error) {
	var rec envelopeRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Envelope{}, tides.Snapshot{}, fmt.Errorf("decode envelope: %w", err)
	}
	if rec.Version != envelopeVersion {
		return Envelope{}, tides.Snapshot{}, fmt.Errorf("decode envelope: unknown version %d", rec.Version)
	}
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return Envelope{}, tides.Snapshot{}, fmt.Errorf("decode envelope: %w", err)
	}
	snap, err := tides.DecodeSnapshot(rec.Snapshot)
	if err != nil {
		return Envelope{}, tides.Snapshot{}, err
	}
	env := Envelope{
		ID:         id,
		Sender:     rec.Sender,
		SentAt:     time.UnixMilli(rec.SentAt).UTC(),
		NewStation: rec.NewStation,
	}
	return env, snap, nil
}
