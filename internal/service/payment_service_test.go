package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/tripvault/internal/gateway"
	"github.com/mmynk/tripvault/internal/gateway/gatewaytest"
	"github.com/mmynk/tripvault/internal/metrics"
	"github.com/mmynk/tripvault/pkg/api"
)

func TestPaymentLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	f := ts.fixture
	bob := f.Bob.ID

	created, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, bob, &api.CreatePaymentIntentRequest{SplitID: f.BobSplit().ID}))
	if err != nil {
		t.Fatalf("CreatePaymentIntent failed: %v", err)
	}
	txn := created.Msg.Transaction
	if txn.Status != "pending" || txn.Amount != "30.00" || txn.RecipientID != f.Alice.ID {
		t.Fatalf("unexpected transaction %+v", txn)
	}
	if created.Msg.ClientSecret == "" || created.Msg.Reused {
		t.Errorf("ClientSecret = %q, Reused = %v", created.Msg.ClientSecret, created.Msg.Reused)
	}

	again, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, bob, &api.CreatePaymentIntentRequest{SplitID: f.BobSplit().ID}))
	if err != nil {
		t.Fatalf("second CreatePaymentIntent failed: %v", err)
	}
	if !again.Msg.Reused || again.Msg.Transaction.PaymentIntentID != txn.PaymentIntentID {
		t.Errorf("expected the pending attempt back, got %+v", again.Msg.Transaction)
	}

	intentID := txn.PaymentIntentID
	ts.processor.Succeed(intentID, 117)

	for i := 0; i < 2; i++ {
		if status := ts.postWebhook(t, gateway.EventIntentSucceeded, intentID, ""); status != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i+1, status)
		}
	}
	if got := ts.processor.Calls(gatewaytest.OpRetrieveFee); got != 1 {
		t.Errorf("fee looked up %d times, want 1", got)
	}
	if got := testutil.ToFloat64(ts.metrics.Transitions.WithLabelValues("succeeded")); got != 1 {
		t.Errorf("succeeded transitions = %v, want 1", got)
	}

	history, err := ts.payment.GetTransactionHistory(ctx, as(t, ts, f.Carol.ID, &api.GetTransactionHistoryRequest{TripID: f.Trip.ID}))
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history.Msg.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(history.Msg.Transactions))
	}
	row := history.Msg.Transactions[0]
	if row.Status != "succeeded" || row.Fee != "1.17" || row.NetAmount != "28.83" || row.FeeStatus != "known" {
		t.Errorf("settled row = %+v", row.Transaction)
	}
	if row.PayerUsername != "bob" || row.RecipientUsername != "alice" {
		t.Errorf("identities = %s -> %s", row.PayerUsername, row.RecipientUsername)
	}

	unpaid, err := ts.payment.GetUnpaidSplits(ctx, as(t, ts, bob, &api.GetUnpaidSplitsRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(unpaid.Msg.Splits) != 0 {
		t.Errorf("Bob still has unpaid splits: %+v", unpaid.Msg.Splits)
	}

	entry, err := ts.vault.GetEntry(ctx, as(t, ts, bob, &api.GetEntryRequest{EntryID: f.Entry.ID}))
	if err != nil {
		t.Fatal(err)
	}
	paid := entry.Msg.Entry.Splits[1]
	if !paid.Paid || !paid.PaidViaStripe || paid.PaidAt == "" {
		t.Errorf("Bob's split = %+v, want paid via stripe", paid)
	}

	summary, err := ts.vault.GetTripSummary(ctx, as(t, ts, bob, &api.GetTripSummaryRequest{TripID: f.Trip.ID}))
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range summary.Msg.Currencies[0].Balances {
		if b.UserID == bob && b.NetBalance != "0.00" {
			t.Errorf("Bob's balance after paying = %s, want 0.00", b.NetBalance)
		}
	}

	_, err = ts.payment.CreatePaymentIntent(ctx, as(t, ts, bob, &api.CreatePaymentIntentRequest{SplitID: f.BobSplit().ID}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestFailedPaymentCanBeRetried(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	f := ts.fixture
	carol := f.Carol.ID

	first, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, carol, &api.CreatePaymentIntentRequest{SplitID: f.CarolSplit().ID}))
	if err != nil {
		t.Fatal(err)
	}
	intentID := first.Msg.Transaction.PaymentIntentID
	ts.processor.Fail(intentID, "card_declined")
	if status := ts.postWebhook(t, gateway.EventIntentFailed, intentID, "card_declined"); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	second, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, carol, &api.CreatePaymentIntentRequest{SplitID: f.CarolSplit().ID}))
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if second.Msg.Reused || second.Msg.Transaction.PaymentIntentID == intentID {
		t.Errorf("retry reused the failed attempt")
	}

	history, err := ts.payment.GetTransactionHistory(ctx, as(t, ts, carol, &api.GetTransactionHistoryRequest{TripID: f.Trip.ID}))
	if err != nil {
		t.Fatal(err)
	}
	statuses := map[string]string{}
	for _, row := range history.Msg.Transactions {
		statuses[row.PaymentIntentID] = row.Status
		if row.PaymentIntentID == intentID && row.ErrorMessage != "card_declined" {
			t.Errorf("ErrorMessage = %q, want card_declined", row.ErrorMessage)
		}
	}
	if statuses[intentID] != "failed" || statuses[second.Msg.Transaction.PaymentIntentID] != "pending" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestConfirmPayment(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	f := ts.fixture

	created, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, f.Carol.ID, &api.CreatePaymentIntentRequest{SplitID: f.CarolSplit().ID}))
	if err != nil {
		t.Fatal(err)
	}
	intentID := created.Msg.Transaction.PaymentIntentID

	confirm := func(userID string) (*connect.Response[api.ConfirmPaymentResponse], error) {
		return ts.payment.ConfirmPayment(ctx, as(t, ts, userID, &api.ConfirmPaymentRequest{PaymentIntentID: intentID}))
	}

	resp, err := confirm(f.Carol.ID)
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if resp.Msg.Transaction.Status != "pending" {
		t.Errorf("status before payment = %s, want pending", resp.Msg.Transaction.Status)
	}

	_, err = confirm(f.Bob.ID)
	assertCode(t, err, connect.CodePermissionDenied)

	ts.processor.SetError(gatewaytest.OpRetrieveIntent, errors.New("connection reset"))
	_, err = confirm(f.Carol.ID)
	assertCode(t, err, connect.CodeUnavailable)
	ts.processor.SetError(gatewaytest.OpRetrieveIntent, nil)

	ts.processor.Succeed(intentID, 117)
	resp, err = confirm(f.Carol.ID)
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if resp.Msg.Transaction.Status != "succeeded" || resp.Msg.Transaction.NetAmount != "28.83" {
		t.Errorf("confirmed = %+v", resp.Msg.Transaction)
	}

	// The recipient may confirm too; a settled payment is returned unchanged.
	resp, err = confirm(f.Alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.Transaction.CompletedAt == "" {
		t.Error("CompletedAt not set")
	}

	_, err = ts.payment.ConfirmPayment(ctx, as(t, ts, f.Carol.ID, &api.ConfirmPaymentRequest{PaymentIntentID: "pi_missing"}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestCreatePaymentIntentRejects(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	f := ts.fixture

	tests := []struct {
		name     string
		callerID string
		splitID  string
		want     connect.Code
	}{
		{"payer's own share", f.Alice.ID, f.Entry.Splits[0].ID, connect.CodeInvalidArgument},
		{"someone else's split", f.Carol.ID, f.BobSplit().ID, connect.CodeInvalidArgument},
		{"unknown split", f.Bob.ID, "no-such-split", connect.CodeNotFound},
		{"missing split id", f.Bob.ID, "", connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, tt.callerID, &api.CreatePaymentIntentRequest{SplitID: tt.splitID}))
			assertCode(t, err, tt.want)
		})
	}

	t.Run("processor down", func(t *testing.T) {
		ts.processor.SetError(gatewaytest.OpCreateIntent, errors.New("service unavailable"))
		defer ts.processor.SetError(gatewaytest.OpCreateIntent, nil)

		_, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, f.Bob.ID, &api.CreatePaymentIntentRequest{SplitID: f.BobSplit().ID}))
		assertCode(t, err, connect.CodeUnavailable)

		history, err := ts.payment.GetTransactionHistory(ctx, as(t, ts, f.Bob.ID, &api.GetTransactionHistoryRequest{TripID: f.Trip.ID}))
		if err != nil {
			t.Fatal(err)
		}
		if len(history.Msg.Transactions) != 0 {
			t.Errorf("failed call persisted %d transactions", len(history.Msg.Transactions))
		}
	})
}

func TestListFeeUnknown(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	f := ts.fixture

	created, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, f.Bob.ID, &api.CreatePaymentIntentRequest{SplitID: f.BobSplit().ID}))
	if err != nil {
		t.Fatal(err)
	}
	intentID := created.Msg.Transaction.PaymentIntentID
	ts.processor.SucceedWithoutBalance(intentID)
	if status := ts.postWebhook(t, gateway.EventIntentSucceeded, intentID, ""); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if got := testutil.ToFloat64(ts.metrics.UnknownFees); got != 1 {
		t.Errorf("unknown fees = %v, want 1", got)
	}

	tests := []struct {
		name     string
		callerID string
		want     int
	}{
		{"payer", f.Bob.ID, 1},
		{"recipient", f.Alice.ID, 1},
		{"uninvolved member", f.Carol.ID, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ts.payment.ListFeeUnknown(ctx, as(t, ts, tt.callerID, &api.ListFeeUnknownRequest{}))
			if err != nil {
				t.Fatalf("ListFeeUnknown failed: %v", err)
			}
			if len(resp.Msg.Transactions) != tt.want {
				t.Fatalf("got %d transactions, want %d", len(resp.Msg.Transactions), tt.want)
			}
			if tt.want > 0 {
				txn := resp.Msg.Transactions[0]
				if txn.FeeStatus != "unknown" || txn.Fee != "" || txn.NetAmount != "" || txn.Status != "succeeded" {
					t.Errorf("fee-unknown row = %+v", txn)
				}
			}
		})
	}

	_, err = ts.payment.ListFeeUnknown(ctx, as(t, ts, f.Bob.ID, &api.ListFeeUnknownRequest{Limit: -1}))
	assertCode(t, err, connect.CodeInvalidArgument)

	if got := testutil.ToFloat64(ts.metrics.WebhookEvents.WithLabelValues(string(gateway.EventIntentSucceeded), metrics.OutcomeHandled)); got != 1 {
		t.Errorf("handled webhooks = %v, want 1", got)
	}
}

func TestListFeeUnknownLimitAppliesToCaller(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	f := ts.fixture

	// Carol's settlement completes first, so it heads the global list.
	for _, payer := range []struct {
		userID  string
		splitID string
	}{
		{f.Carol.ID, f.CarolSplit().ID},
		{f.Bob.ID, f.BobSplit().ID},
	} {
		created, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, payer.userID, &api.CreatePaymentIntentRequest{SplitID: payer.splitID}))
		if err != nil {
			t.Fatal(err)
		}
		intentID := created.Msg.Transaction.PaymentIntentID
		ts.processor.SucceedWithoutBalance(intentID)
		if status := ts.postWebhook(t, gateway.EventIntentSucceeded, intentID, ""); status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
	}

	resp, err := ts.payment.ListFeeUnknown(ctx, as(t, ts, f.Bob.ID, &api.ListFeeUnknownRequest{Limit: 1}))
	if err != nil {
		t.Fatalf("ListFeeUnknown failed: %v", err)
	}
	if len(resp.Msg.Transactions) != 1 || resp.Msg.Transactions[0].PayerID != f.Bob.ID {
		t.Errorf("Bob's fee-unknown rows = %+v, want his own transaction", resp.Msg.Transactions)
	}
}
