package main

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/fiscobcos/tx-scheduler/pkg/precompiled"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// Transfer-benchmark workload generation, grounded on
// original_source/transaction-scheduler/benchmark/benchmarkScheduler.cpp's
// Fixture: issue every account an opening balance, then generate random
// transfers between them, exercising the DagTransfer precompiled as a
// deterministic stand-in for a deployed contract.
const (
	openingBalance = 1_000_000
	transferAmount = 1
)

var (
	issueSelector    = precompiled.Selector("issue(string,uint256)")
	transferSelector = precompiled.Selector("transfer(string,string,uint256)")
)

func accountName(i int) string {
	return fmt.Sprintf("account-%08d", i)
}

func amountBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func issueTx(tag uint32, account string, amount uint64) types.Transaction {
	payload := append(append([]byte(nil), issueSelector[:]...), []byte(account+"\n")...)
	payload = append(payload, amountBytes(amount)...)
	var hash [32]byte
	binary.BigEndian.PutUint32(hash[:4], tag)
	return types.Transaction{Hash: hash, Recipient: precompiled.DagTransferAddress, Input: payload, Flags: types.FlagParallelEligible}
}

func transferTx(tag uint32, from, to string, amount uint64) types.Transaction {
	payload := append(append([]byte(nil), transferSelector[:]...), []byte(from+"\n"+to+"\n")...)
	payload = append(payload, amountBytes(amount)...)
	var hash [32]byte
	binary.BigEndian.PutUint32(hash[:4], tag)
	return types.Transaction{Hash: hash, Recipient: precompiled.DagTransferAddress, Input: payload, Flags: types.FlagParallelEligible}
}

// issueBlock builds the opening-balance transaction for every account.
func issueBlock(accounts int) []types.Transaction {
	txs := make([]types.Transaction, accounts)
	for i := 0; i < accounts; i++ {
		txs[i] = issueTx(uint32(i), accountName(i), openingBalance)
	}
	return txs
}

// transferBlock builds count random transfers among accounts, seeded for
// reproducible benchmark runs.
func transferBlock(rng *rand.Rand, accounts, count int) []types.Transaction {
	txs := make([]types.Transaction, count)
	for i := 0; i < count; i++ {
		from := rng.Intn(accounts)
		to := rng.Intn(accounts)
		for to == from {
			to = rng.Intn(accounts)
		}
		txs[i] = transferTx(uint32(accounts+i), accountName(from), accountName(to), transferAmount)
	}
	return txs
}
