package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tripvault/internal/gateway"
	"github.com/mmynk/tripvault/internal/reconcile"
	"github.com/mmynk/tripvault/internal/storage"
	"github.com/mmynk/tripvault/internal/vaulterr"
	"github.com/mmynk/tripvault/pkg/api"
	"github.com/mmynk/tripvault/pkg/api/apiconnect"
)

var _ apiconnect.PaymentServiceHandler = (*PaymentService)(nil)

const (
	defaultFeeUnknownLimit = 100
	maxFeeUnknownLimit     = 500
)

// PaymentService implements the Connect PaymentService: starting and
// confirming electronic payments and reporting on them.
type PaymentService struct {
	store   storage.Store
	adapter *gateway.Adapter
	engine  *reconcile.Engine
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(store storage.Store, adapter *gateway.Adapter, engine *reconcile.Engine) *PaymentService {
	return &PaymentService{store: store, adapter: adapter, engine: engine}
}

// CreatePaymentIntent starts payment of one of the caller's splits.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, req *connect.Request[api.CreatePaymentIntentRequest]) (*connect.Response[api.CreatePaymentIntentResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.SplitID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, vaulterr.Validation("split_id is required"))
	}

	split, err := s.store.GetSplit(ctx, req.Msg.SplitID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, vaulterr.NotFound("split", req.Msg.SplitID))
	}
	if err != nil {
		slog.Error("Failed to get split", "split_id", req.Msg.SplitID, "error", err)
		return nil, toConnectError(err)
	}
	if _, err := requireMember(ctx, s.store, split.TripID, userID); err != nil {
		return nil, err
	}

	pi, err := s.adapter.CreatePaymentIntent(ctx, split.ID, userID)
	if err != nil {
		slog.Warn("CreatePaymentIntent failed", "split_id", split.ID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.CreatePaymentIntentResponse{
		Transaction:  transactionToAPI(pi.Transaction),
		ClientSecret: pi.ClientSecret,
		Reused:       pi.Reused,
	}), nil
}

// ConfirmPayment asks the processor for the outcome of one of the caller's
// payments and applies it.
func (s *PaymentService) ConfirmPayment(ctx context.Context, req *connect.Request[api.ConfirmPaymentRequest]) (*connect.Response[api.ConfirmPaymentResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	intentID := req.Msg.PaymentIntentID
	if intentID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, vaulterr.Validation("payment_intent_id is required"))
	}

	txn, err := s.store.GetTransactionByIntent(ctx, intentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, vaulterr.NotFound("transaction", intentID))
	}
	if err != nil {
		slog.Error("Failed to get transaction", "intent_id", intentID, "error", err)
		return nil, toConnectError(err)
	}
	if txn.PayerID != userID && txn.RecipientID != userID {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("caller is not a party to this payment"))
	}

	confirmed, err := s.engine.Confirm(ctx, intentID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ConfirmPaymentResponse{Transaction: transactionToAPI(confirmed)}), nil
}

// GetTransactionHistory lists a trip's payment attempts, newest first.
func (s *PaymentService) GetTransactionHistory(ctx context.Context, req *connect.Request[api.GetTransactionHistoryRequest]) (*connect.Response[api.GetTransactionHistoryResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	trip, err := requireMember(ctx, s.store, req.Msg.TripID, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.ListTransactionsByTrip(ctx, trip.ID)
	if err != nil {
		slog.Error("Failed to list transactions", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.GetTransactionHistoryResponse{Transactions: make([]*api.HistoryEntry, len(rows))}
	for i, row := range rows {
		resp.Transactions[i] = historyToAPI(row)
	}
	return connect.NewResponse(resp), nil
}

// GetUnpaidSplits lists the caller's outstanding payable splits across all trips.
func (s *PaymentService) GetUnpaidSplits(ctx context.Context, req *connect.Request[api.GetUnpaidSplitsRequest]) (*connect.Response[api.GetUnpaidSplitsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.ListUnpaidSplitsForUser(ctx, userID)
	if err != nil {
		slog.Error("Failed to list unpaid splits", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.GetUnpaidSplitsResponse{Splits: make([]*api.UnpaidSplit, len(rows))}
	for i, row := range rows {
		resp.Splits[i] = unpaidToAPI(row)
	}
	return connect.NewResponse(resp), nil
}

// ListFeeUnknown lists succeeded payments involving the caller whose
// processor fee is still unknown.
func (s *PaymentService) ListFeeUnknown(ctx context.Context, req *connect.Request[api.ListFeeUnknownRequest]) (*connect.Response[api.ListFeeUnknownResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	limit := req.Msg.Limit
	switch {
	case limit < 0:
		return nil, connect.NewError(connect.CodeInvalidArgument, vaulterr.Validation("limit must not be negative"))
	case limit == 0:
		limit = defaultFeeUnknownLimit
	case limit > maxFeeUnknownLimit:
		limit = maxFeeUnknownLimit
	}

	txns, err := s.store.ListFeeUnknownTransactionsForUser(ctx, userID, limit)
	if err != nil {
		slog.Error("Failed to list fee-unknown transactions", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.ListFeeUnknownResponse{Transactions: make([]*api.Transaction, 0, len(txns))}
	for _, txn := range txns {
		resp.Transactions = append(resp.Transactions, transactionToAPI(txn))
	}
	return connect.NewResponse(resp), nil
}
