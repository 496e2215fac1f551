// Package rpcstub documents the wire contract an external JSON-RPC/gRPC
// front end would call into to drive this execution core: ExecuteBlock
// and GetReceipt. The RPC surface itself, its authentication, and its
// wire transport are explicitly out of scope (spec.md §1 Non-goals) —
// this package exists only so that boundary has a concrete, typed home
// instead of being implicit, and so google.golang.org/grpc has somewhere
// real to attach once a server is built. No server is registered here;
// see DESIGN.md for why this stays a stub rather than a full service.
package rpcstub

import (
	"context"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ExecuteBlockRequest is what a front end would submit: a block header
// and its ordered transactions. ReceivedAt is stamped by the front end,
// not by this core (block execution itself is deterministic and
// wall-clock-free).
type ExecuteBlockRequest struct {
	BlockNumber  uint64
	Transactions []types.Transaction
	ReceivedAt   *timestamppb.Timestamp
}

// ExecuteBlockResponse carries one receipt per submitted transaction, in
// order.
type ExecuteBlockResponse struct {
	Receipts []types.Receipt
}

// GetReceiptRequest looks up a previously executed transaction by hash.
type GetReceiptRequest struct {
	TxHash [32]byte
}

// GetReceiptResponse reports whether the hash was found and, if so, its
// receipt.
type GetReceiptResponse struct {
	Found   bool
	Receipt types.Receipt
}

// Service is the contract a generated gRPC server would implement over
// scheduler.ExecuteBlockSerial/ExecuteBlockParallel and a receipt index
// this package does not itself define.
type Service interface {
	ExecuteBlock(ctx context.Context, req *ExecuteBlockRequest) (*ExecuteBlockResponse, error)
	GetReceipt(ctx context.Context, req *GetReceiptRequest) (*GetReceiptResponse, error)
}

// Dial opens an insecure, unauthenticated gRPC client connection to addr.
// It exists so callers outside this module (an RPC gateway, an
// integration test harness) have a standard way to reach a Service
// implementation once one is registered; TLS and auth are the front
// end's concern, not this core's.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}
