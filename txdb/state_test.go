// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"testing"

	"github.com/btcsuite/btcutil"
	"github.com/stretchr/testify/require"
)

func TestStateSerializeRoundTrip(t *testing.T) {
	s := &State{
		TxCount:             7,
		CoinCount:           3,
		UnconfirmedSatoshis: 123456789,
		ConfirmedSatoshis:   987654321,
	}
	raw, err := s.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, 32)

	got, derr := DeserializeState(raw)
	require.NoError(t, derr)
	require.Equal(t, s, got)
}

func TestStateSerializeRejectsNegativeBalance(t *testing.T) {
	s := &State{UnconfirmedSatoshis: -1}
	_, err := s.Serialize()
	require.Error(t, err)
	require.True(t, Bug.Is(err))
}

func TestDeserializeStateRejectsWrongSize(t *testing.T) {
	_, err := DeserializeState([]byte{1, 2, 3})
	require.Error(t, err)
	require.True(t, ErrData.Is(err))
}

func TestStateBalanceProjection(t *testing.T) {
	s := &State{ConfirmedSatoshis: 5000, UnconfirmedSatoshis: 2500}
	bal := s.Balance()
	require.Equal(t, btcutil.Amount(5000), bal.Confirmed)
	require.Equal(t, btcutil.Amount(2500), bal.Unconfirmed)
}

func TestStateCloneIsIndependent(t *testing.T) {
	s := &State{TxCount: 1, CoinCount: 1, UnconfirmedSatoshis: 10, ConfirmedSatoshis: 20}
	cp := s.clone()
	cp.TxCount = 99
	cp.ConfirmedSatoshis = 0

	require.Equal(t, uint64(1), s.TxCount)
	require.Equal(t, int64(20), s.ConfirmedSatoshis)
	require.Equal(t, uint64(99), cp.TxCount)
}
