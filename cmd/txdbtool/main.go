// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// txdbtool is a command-line inspection tool for a txdb database, in the
// shape of pktwallet's cmd/wallettool: open the database, run one
// subcommand against it, print the result.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/jessevdk/go-flags"

	"github.com/nodewallet/txdb/kvstore/leveldb"
	"github.com/nodewallet/txdb/txdb"
	"github.com/nodewallet/txdb/walletiface/memdir"
	"github.com/nodewallet/txdb/walletiface/memindex"
)

const defaultNet = "mainnet"

var datadir = defaultAppDataDir()

func defaultAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".txdbtool")
}

// Flags.
var opts = struct {
	DbPath     string `long:"db" description:"Path to the txdb leveldb directory"`
	LogFile    string `long:"logfile" description:"Path to the log file"`
	DebugLevel string `long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical" default:"info"`
	Wallet     uint32 `long:"wallet" description:"Wallet id to operate on" default:"0"`
}{
	DbPath:  filepath.Join(datadir, defaultNet, "txdb"),
	LogFile: filepath.Join(datadir, defaultNet, "txdbtool.log"),
}

func main() {
	os.Exit(mainInt())
}

// op is one subcommand: given an open store and the remaining CLI args, do
// something and print the result.
type op func(s *txdb.Store, args []string) error

var ops = map[string]op{
	"balance": opBalance,
	"history": opHistory,
	"pending": opPending,
	"coins":   opCoins,
	"details": opDetails,
	"zap":     opZap,
}

func mainInt() int {
	args, err := flags.Parse(&opts)
	if err != nil {
		return 1
	}
	if len(args) < 1 || ops[args[0]] == nil {
		usage()
		return 1
	}

	if err := initLogRotator(opts.LogFile); err != nil {
		fmt.Println("Failed to initialize log rotation:", err)
		return 1
	}
	setLogLevel("TOOL", opts.DebugLevel)
	setLogLevel("TXDB", opts.DebugLevel)

	kv, err := leveldb.Open(opts.DbPath)
	if err != nil {
		fmt.Println("Failed to open database:", err)
		return 1
	}
	defer kv.Close()

	if err := txdb.Create(opts.Wallet, kv); err != nil && !txdb.ErrAlreadyExists.Is(err) {
		fmt.Println("Failed to initialize store:", err)
		return 1
	}

	storeOpts := txdb.Options{Params: &chaincfg.MainNetParams}
	s, err := txdb.Open(opts.Wallet, kv, memindex.New(), memdir.New(), storeOpts, &txdb.EventSink{})
	if err != nil {
		fmt.Println("Failed to open store:", err)
		return 1
	}

	if err := ops[args[0]](s, args[1:]); err != nil {
		fmt.Println(err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Println("Usage: txdbtool [--db <path>] [--wallet <id>] COMMAND [args...]")
	fmt.Println("    balance              # print the wallet's confirmed/unconfirmed balance")
	fmt.Println("    history              # list every indexed transaction hash")
	fmt.Println("    pending              # list unconfirmed transaction hashes")
	fmt.Println("    coins                # list unspent, unlocked credits")
	fmt.Println("    details <txid>       # print the full Details projection for a transaction")
	fmt.Println("    zap <age_seconds>    # remove pending transactions older than age")
}

func opBalance(s *txdb.Store, args []string) error {
	bal, err := s.GetBalance(nil)
	if err != nil {
		return err
	}
	fmt.Printf("confirmed:   %s\n", bal.Confirmed)
	fmt.Printf("unconfirmed: %s\n", bal.Unconfirmed)
	return nil
}

func opHistory(s *txdb.Store, args []string) error {
	hashes, err := s.GetHistoryHashes()
	if err != nil {
		return err
	}
	for _, h := range hashes {
		fmt.Println(h.String())
	}
	return nil
}

func opPending(s *txdb.Store, args []string) error {
	hashes, err := s.GetPendingHashes()
	if err != nil {
		return err
	}
	for _, h := range hashes {
		fmt.Println(h.String())
	}
	return nil
}

func opCoins(s *txdb.Store, args []string) error {
	coins, err := s.GetCoins(nil)
	if err != nil {
		return err
	}
	for _, c := range coins {
		fmt.Printf("%s:%d  %s  height=%d\n", c.Coin.Outpoint.Hash.String(), c.Coin.Outpoint.Index,
			c.Coin.Value, c.Coin.Height)
	}
	return nil
}

func opDetails(s *txdb.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("details requires a transaction hash argument")
	}
	hash, err := chainhash.NewHashFromStr(args[0])
	if err != nil {
		return err
	}
	details, derr := s.GetDetails(hash)
	if derr != nil {
		return derr
	}
	fmt.Printf("tx %s at height %d\n", details.Hash, details.Height)
	for _, in := range details.Inputs {
		fmt.Printf("  in  %d: ours=%v value=%s account=%d\n", in.Index, in.Ours, in.Value, in.Path.Account)
	}
	for _, out := range details.Outputs {
		fmt.Printf("  out %d: ours=%v value=%s account=%d\n", out.Index, out.Ours, out.Value, out.Path.Account)
	}
	return nil
}

func opZap(s *txdb.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("zap requires an age (seconds) argument")
	}
	age, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	removed, zerr := s.Zap(nil, time.Now().Unix(), age)
	if zerr != nil {
		return zerr
	}
	for _, h := range removed {
		fmt.Println(h.String())
	}
	return nil
}
