// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

func TestCoinSerializeRoundTrip(t *testing.T) {
	op := Outpoint{Hash: hashFromByte(1), Index: 3}
	c := &Coin{
		Outpoint: op,
		Value:    btcutil.Amount(123456789),
		Script:   []byte{0x76, 0xa9, 0x14, 0x01, 0x02, 0x03},
		Height:   -1,
		Coinbase: true,
	}
	raw := c.Serialize()
	got, err := DeserializeCoin(op, raw)
	if err != nil {
		t.Fatalf("DeserializeCoin: %v", err)
	}
	if got.Value != c.Value || got.Height != c.Height || got.Coinbase != c.Coinbase {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
	}
	if !bytes.Equal(got.Script, c.Script) {
		t.Fatalf("script round trip mismatch: got %x, want %x", got.Script, c.Script)
	}
	if got.Outpoint != op {
		t.Fatalf("outpoint not attached correctly: got %+v, want %+v", got.Outpoint, op)
	}
}

func TestCreditSerializeRoundTrip(t *testing.T) {
	op := Outpoint{Hash: hashFromByte(2), Index: 0}
	cred := &Credit{
		Coin: Coin{
			Outpoint: op,
			Value:    btcutil.Amount(5000),
			Script:   []byte{0x51},
			Height:   200,
		},
		Spent: true,
	}
	raw := cred.Serialize()
	got, err := DeserializeCredit(op, raw)
	if err != nil {
		t.Fatalf("DeserializeCredit: %v", err)
	}
	if got.Spent != true {
		t.Fatalf("spent flag not round-tripped")
	}
	if got.Coin.Value != cred.Coin.Value {
		t.Fatalf("coin value not round-tripped")
	}
}

func TestBlockRecordSerializeRoundTrip(t *testing.T) {
	rec := &BlockRecord{
		Hash:   hashFromByte(5),
		Height: 700,
		Time:   1600000000,
		Txs:    []chainhash.Hash{hashFromByte(1), hashFromByte(2), hashFromByte(3)},
	}
	raw := rec.Serialize()
	got, err := DeserializeBlockRecord(raw)
	if err != nil {
		t.Fatalf("DeserializeBlockRecord: %v", err)
	}
	if got.Hash != rec.Hash || got.Height != rec.Height || got.Time != rec.Time {
		t.Fatalf("block record scalar fields mismatch: got %+v, want %+v", got, rec)
	}
	if len(got.Txs) != len(rec.Txs) {
		t.Fatalf("tx count mismatch: got %d, want %d", len(got.Txs), len(rec.Txs))
	}
	for i := range rec.Txs {
		if got.Txs[i] != rec.Txs[i] {
			t.Fatalf("tx %d mismatch: got %v, want %v", i, got.Txs[i], rec.Txs[i])
		}
	}
}

func TestBlockRecordRemoveTx(t *testing.T) {
	rec := &BlockRecord{Txs: []chainhash.Hash{hashFromByte(1), hashFromByte(2)}}
	if empty := rec.removeTx(hashFromByte(1)); empty {
		t.Fatalf("removing one of two txs should not empty the record")
	}
	if len(rec.Txs) != 1 || rec.Txs[0] != hashFromByte(2) {
		t.Fatalf("removeTx left the wrong tx: %v", rec.Txs)
	}
	if empty := rec.removeTx(hashFromByte(2)); !empty {
		t.Fatalf("removing the last tx should report the record as empty")
	}
}

func newTestMsgTx(value int64) *wire.MsgTx {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, []byte{0x51}))
	msgTx.AddTxOut(wire.NewTxOut(value, []byte{0x76, 0xa9, 0x14}))
	return msgTx
}

func TestTxRecordSerializeRoundTrip(t *testing.T) {
	msgTx := newTestMsgTx(1000)
	rec := NewTxRecord(msgTx, 1234567890)
	rec.Height = 55
	rec.Block = hashFromByte(9)
	rec.BlockTs = 1600000001
	rec.Index = 2

	raw, err := rec.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, derr := DeserializeTxRecord(raw)
	if derr != nil {
		t.Fatalf("DeserializeTxRecord: %v", derr)
	}
	if got.Hash != rec.Hash {
		t.Fatalf("hash mismatch: got %v, want %v", got.Hash, rec.Hash)
	}
	if got.PS != rec.PS || got.Height != rec.Height || got.Block != rec.Block ||
		got.BlockTs != rec.BlockTs || got.Index != rec.Index {
		t.Fatalf("metadata mismatch: got %+v, want %+v", got, rec)
	}
	if got.MsgTx.TxOut[0].Value != msgTx.TxOut[0].Value {
		t.Fatalf("canonical tx bytes not round-tripped")
	}
}

func TestOutpointValueSerializeRoundTrip(t *testing.T) {
	op := Outpoint{Hash: hashFromByte(6), Index: 9}
	raw := op.serialize()
	got, err := deserializeOutpointValue(raw)
	if err != nil {
		t.Fatalf("deserializeOutpointValue: %v", err)
	}
	if got != op {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, op)
	}
}

func TestDetailsAddAccountDedups(t *testing.T) {
	d := &Details{}
	d.addAccount(1)
	d.addAccount(2)
	d.addAccount(1)
	if len(d.Accounts) != 2 {
		t.Fatalf("addAccount should dedup: got %v", d.Accounts)
	}
}
