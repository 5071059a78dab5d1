// Copyright (c) 2015-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import "github.com/nodewallet/txdb/txerr"

// Err identifies the txdb error family.
var Err = txerr.NewErrorType("txdb.Err")

var (
	// ErrDatabase indicates an error with the underlying KV store. The
	// wrapped cause is the error returned from the store.
	ErrDatabase = Err.Code("ErrDatabase")

	// ErrData describes an error where data stored in the transaction
	// database is incorrect: missing values, wrong-sized values, or data
	// from different tables that is inconsistent with itself.
	ErrData = Err.Code("ErrData")

	// ErrInput describes an error where the caller's arguments are
	// obviously incorrect -- e.g. a transaction that does not serialize,
	// or a credit index for which no output exists.
	ErrInput = Err.Code("ErrInput")

	// ErrAlreadyExists describes an error where Create cannot continue
	// because a store already exists for this wallet.
	ErrAlreadyExists = Err.Code("ErrAlreadyExists")

	// ErrNoExists describes an error where Open cannot find a store for
	// this wallet. Callers should create one instead.
	ErrNoExists = Err.Code("ErrNoExists")

	// ErrPrecondition marks a caller-visible precondition violation: e.g.
	// confirm on an already-confirmed tx, or abandon on a tx that is not
	// currently pending. See spec §7(a).
	ErrPrecondition = Err.Code("ErrPrecondition")

	// ErrNotFound is a benign not-found result, never treated as a
	// failure by callers. See spec §7(d).
	ErrNotFound = Err.Code("ErrNotFound")

	// Bug marks a corrupted-invariant condition: something that cannot be
	// true in a correct implementation (e.g. a negative balance in
	// State.Serialize, or a self-spend in resolveInput). It is returned
	// to the caller like any other error and runBatch drops the open
	// batch; nothing panics or aborts the process.
	Bug = Err.Code("Bug")
)
