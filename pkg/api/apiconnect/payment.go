package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tripvault/pkg/api"
)

// PaymentServiceName is the fully-qualified name of the PaymentService service.
const PaymentServiceName = "tripvault.v1.PaymentService"

// Procedure paths of PaymentService.
const (
	PaymentServiceCreatePaymentIntentProcedure   = "/tripvault.v1.PaymentService/CreatePaymentIntent"
	PaymentServiceConfirmPaymentProcedure        = "/tripvault.v1.PaymentService/ConfirmPayment"
	PaymentServiceGetTransactionHistoryProcedure = "/tripvault.v1.PaymentService/GetTransactionHistory"
	PaymentServiceGetUnpaidSplitsProcedure       = "/tripvault.v1.PaymentService/GetUnpaidSplits"
	PaymentServiceListFeeUnknownProcedure        = "/tripvault.v1.PaymentService/ListFeeUnknown"
)

// PaymentServiceHandler is implemented by the payment service.
type PaymentServiceHandler interface {
	CreatePaymentIntent(context.Context, *connect.Request[api.CreatePaymentIntentRequest]) (*connect.Response[api.CreatePaymentIntentResponse], error)
	ConfirmPayment(context.Context, *connect.Request[api.ConfirmPaymentRequest]) (*connect.Response[api.ConfirmPaymentResponse], error)
	GetTransactionHistory(context.Context, *connect.Request[api.GetTransactionHistoryRequest]) (*connect.Response[api.GetTransactionHistoryResponse], error)
	GetUnpaidSplits(context.Context, *connect.Request[api.GetUnpaidSplitsRequest]) (*connect.Response[api.GetUnpaidSplitsResponse], error)
	ListFeeUnknown(context.Context, *connect.Request[api.ListFeeUnknownRequest]) (*connect.Response[api.ListFeeUnknownResponse], error)
}

// NewPaymentServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewPaymentServiceHandler(svc PaymentServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{withCodec()}, opts...)
	createPaymentIntent := connect.NewUnaryHandler(PaymentServiceCreatePaymentIntentProcedure, svc.CreatePaymentIntent, opts...)
	confirmPayment := connect.NewUnaryHandler(PaymentServiceConfirmPaymentProcedure, svc.ConfirmPayment, opts...)
	getTransactionHistory := connect.NewUnaryHandler(PaymentServiceGetTransactionHistoryProcedure, svc.GetTransactionHistory, opts...)
	getUnpaidSplits := connect.NewUnaryHandler(PaymentServiceGetUnpaidSplitsProcedure, svc.GetUnpaidSplits, opts...)
	listFeeUnknown := connect.NewUnaryHandler(PaymentServiceListFeeUnknownProcedure, svc.ListFeeUnknown, opts...)

	return "/" + PaymentServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PaymentServiceCreatePaymentIntentProcedure:
			createPaymentIntent.ServeHTTP(w, r)
		case PaymentServiceConfirmPaymentProcedure:
			confirmPayment.ServeHTTP(w, r)
		case PaymentServiceGetTransactionHistoryProcedure:
			getTransactionHistory.ServeHTTP(w, r)
		case PaymentServiceGetUnpaidSplitsProcedure:
			getUnpaidSplits.ServeHTTP(w, r)
		case PaymentServiceListFeeUnknownProcedure:
			listFeeUnknown.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// PaymentServiceClient is a client for PaymentService.
type PaymentServiceClient interface {
	CreatePaymentIntent(context.Context, *connect.Request[api.CreatePaymentIntentRequest]) (*connect.Response[api.CreatePaymentIntentResponse], error)
	ConfirmPayment(context.Context, *connect.Request[api.ConfirmPaymentRequest]) (*connect.Response[api.ConfirmPaymentResponse], error)
	GetTransactionHistory(context.Context, *connect.Request[api.GetTransactionHistoryRequest]) (*connect.Response[api.GetTransactionHistoryResponse], error)
	GetUnpaidSplits(context.Context, *connect.Request[api.GetUnpaidSplitsRequest]) (*connect.Response[api.GetUnpaidSplitsResponse], error)
	ListFeeUnknown(context.Context, *connect.Request[api.ListFeeUnknownRequest]) (*connect.Response[api.ListFeeUnknownResponse], error)
}

// NewPaymentServiceClient constructs a client for PaymentService at baseURL.
func NewPaymentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PaymentServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{withCodec()}, opts...)
	return &paymentServiceClient{
		createPaymentIntent:   connect.NewClient[api.CreatePaymentIntentRequest, api.CreatePaymentIntentResponse](httpClient, baseURL+PaymentServiceCreatePaymentIntentProcedure, opts...),
		confirmPayment:        connect.NewClient[api.ConfirmPaymentRequest, api.ConfirmPaymentResponse](httpClient, baseURL+PaymentServiceConfirmPaymentProcedure, opts...),
		getTransactionHistory: connect.NewClient[api.GetTransactionHistoryRequest, api.GetTransactionHistoryResponse](httpClient, baseURL+PaymentServiceGetTransactionHistoryProcedure, opts...),
		getUnpaidSplits:       connect.NewClient[api.GetUnpaidSplitsRequest, api.GetUnpaidSplitsResponse](httpClient, baseURL+PaymentServiceGetUnpaidSplitsProcedure, opts...),
		listFeeUnknown:        connect.NewClient[api.ListFeeUnknownRequest, api.ListFeeUnknownResponse](httpClient, baseURL+PaymentServiceListFeeUnknownProcedure, opts...),
	}
}

type paymentServiceClient struct {
	createPaymentIntent   *connect.Client[api.CreatePaymentIntentRequest, api.CreatePaymentIntentResponse]
	confirmPayment        *connect.Client[api.ConfirmPaymentRequest, api.ConfirmPaymentResponse]
	getTransactionHistory *connect.Client[api.GetTransactionHistoryRequest, api.GetTransactionHistoryResponse]
	getUnpaidSplits       *connect.Client[api.GetUnpaidSplitsRequest, api.GetUnpaidSplitsResponse]
	listFeeUnknown        *connect.Client[api.ListFeeUnknownRequest, api.ListFeeUnknownResponse]
}

func (c *paymentServiceClient) CreatePaymentIntent(ctx context.Context, req *connect.Request[api.CreatePaymentIntentRequest]) (*connect.Response[api.CreatePaymentIntentResponse], error) {
	return c.createPaymentIntent.CallUnary(ctx, req)
}

func (c *paymentServiceClient) ConfirmPayment(ctx context.Context, req *connect.Request[api.ConfirmPaymentRequest]) (*connect.Response[api.ConfirmPaymentResponse], error) {
	return c.confirmPayment.CallUnary(ctx, req)
}

func (c *paymentServiceClient) GetTransactionHistory(ctx context.Context, req *connect.Request[api.GetTransactionHistoryRequest]) (*connect.Response[api.GetTransactionHistoryResponse], error) {
	return c.getTransactionHistory.CallUnary(ctx, req)
}

func (c *paymentServiceClient) GetUnpaidSplits(ctx context.Context, req *connect.Request[api.GetUnpaidSplitsRequest]) (*connect.Response[api.GetUnpaidSplitsResponse], error) {
	return c.getUnpaidSplits.CallUnary(ctx, req)
}

func (c *paymentServiceClient) ListFeeUnknown(ctx context.Context, req *connect.Request[api.ListFeeUnknownRequest]) (*connect.Response[api.ListFeeUnknownResponse], error) {
	return c.listFeeUnknown.CallUnary(ctx, req)
}
