// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

// EventSink receives the events a write entry point buffers during its
// body and publishes only after a successful commit (spec §5/§6). A nil
// field is simply not called -- callers that only care about balance
// changes need not implement the rest.
type EventSink struct {
	Tx           func(tx *TxRecord, details *Details)
	Confirmed    func(tx *TxRecord, details *Details)
	Unconfirmed  func(tx *TxRecord, details *Details)
	RemoveTx     func(tx *TxRecord, details *Details)
	Conflict     func(tx *TxRecord, details *Details)
	Balance      func(bal Balance, details *Details)
}

type eventKind int

const (
	eventTx eventKind = iota
	eventConfirmed
	eventUnconfirmed
	eventRemoveTx
	eventConflict
	eventBalance
)

type bufferedEvent struct {
	kind    eventKind
	tx      *TxRecord
	details *Details
	balance Balance
}

// emit publishes one buffered event to the sink, in isolation from the
// staging step -- publish only happens from commit, after the KV batch has
// already succeeded.
func (s *Store) emit(e bufferedEvent) {
	if s.events == nil {
		return
	}
	switch e.kind {
	case eventTx:
		if s.events.Tx != nil {
			s.events.Tx(e.tx, e.details)
		}
	case eventConfirmed:
		if s.events.Confirmed != nil {
			s.events.Confirmed(e.tx, e.details)
		}
	case eventUnconfirmed:
		if s.events.Unconfirmed != nil {
			s.events.Unconfirmed(e.tx, e.details)
		}
	case eventRemoveTx:
		if s.events.RemoveTx != nil {
			s.events.RemoveTx(e.tx, e.details)
		}
	case eventConflict:
		if s.events.Conflict != nil {
			s.events.Conflict(e.tx, e.details)
		}
	case eventBalance:
		if s.events.Balance != nil {
			s.events.Balance(e.balance, e.details)
		}
	}
}
