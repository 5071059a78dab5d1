// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"encoding/binary"

	"github.com/btcsuite/btcutil"

	"github.com/nodewallet/txdb/txerr"
)

// State is the per-wallet singleton record tracked under the 'R' key
// (spec §4.7): running totals maintained incrementally by the write
// pipeline rather than recomputed from a scan on every query.
type State struct {
	TxCount             uint64
	CoinCount           uint64
	UnconfirmedSatoshis int64
	ConfirmedSatoshis   int64
}

// Balance is the public, typed projection of the satoshi totals in State.
type Balance struct {
	Confirmed   btcutil.Amount
	Unconfirmed btcutil.Amount
}

// Serialize encodes State as four little-endian u64 fields, in the order
// txCount, coinCount, unconfirmedSatoshis, confirmedSatoshis. The satoshi
// totals are carried as int64 internally (a pending batch can transiently
// need to subtract before it adds) but are asserted non-negative here --
// a negative total at serialize time is a corrupted invariant, not a
// representable value.
func (s *State) Serialize() ([]byte, txerr.R) {
	if s.UnconfirmedSatoshis < 0 || s.ConfirmedSatoshis < 0 {
		return nil, Bug.Errorf("negative balance at serialize: unconfirmed=%d confirmed=%d",
			s.UnconfirmedSatoshis, s.ConfirmedSatoshis)
	}
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint64(buf[0:8], s.TxCount)
	binary.LittleEndian.PutUint64(buf[8:16], s.CoinCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(s.UnconfirmedSatoshis))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(s.ConfirmedSatoshis))
	return buf, nil
}

// DeserializeState decodes the bytes written by Serialize.
func DeserializeState(b []byte) (*State, txerr.R) {
	if len(b) != 32 {
		return nil, ErrData.Errorf("state record wrong size: %d bytes", len(b))
	}
	return &State{
		TxCount:             binary.LittleEndian.Uint64(b[0:8]),
		CoinCount:           binary.LittleEndian.Uint64(b[8:16]),
		UnconfirmedSatoshis: int64(binary.LittleEndian.Uint64(b[16:24])),
		ConfirmedSatoshis:   int64(binary.LittleEndian.Uint64(b[24:32])),
	}, nil
}

// Balance projects the typed public Balance from the raw satoshi totals.
func (s *State) Balance() Balance {
	return Balance{
		Confirmed:   btcutil.Amount(s.ConfirmedSatoshis),
		Unconfirmed: btcutil.Amount(s.UnconfirmedSatoshis),
	}
}

// clone returns a copy of s for use as a batch's pending draft -- mutated
// freely during a batch body, discarded on drop, swapped in on commit.
func (s *State) clone() *State {
	cp := *s
	return &cp
}
