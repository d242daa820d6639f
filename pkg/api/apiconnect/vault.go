// Package apiconnect binds the api messages to Connect handlers and clients.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tripvault/pkg/api"
)

// VaultServiceName is the fully-qualified name of the VaultService service.
const VaultServiceName = "tripvault.v1.VaultService"

// Procedure paths of VaultService.
const (
	VaultServiceCreateEntryProcedure    = "/tripvault.v1.VaultService/CreateEntry"
	VaultServiceGetEntryProcedure       = "/tripvault.v1.VaultService/GetEntry"
	VaultServiceDeleteEntryProcedure    = "/tripvault.v1.VaultService/DeleteEntry"
	VaultServiceGetTripSummaryProcedure = "/tripvault.v1.VaultService/GetTripSummary"
)

// VaultServiceHandler is implemented by the ledger service.
type VaultServiceHandler interface {
	CreateEntry(context.Context, *connect.Request[api.CreateEntryRequest]) (*connect.Response[api.CreateEntryResponse], error)
	GetEntry(context.Context, *connect.Request[api.GetEntryRequest]) (*connect.Response[api.GetEntryResponse], error)
	DeleteEntry(context.Context, *connect.Request[api.DeleteEntryRequest]) (*connect.Response[api.DeleteEntryResponse], error)
	GetTripSummary(context.Context, *connect.Request[api.GetTripSummaryRequest]) (*connect.Response[api.GetTripSummaryResponse], error)
}

// NewVaultServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewVaultServiceHandler(svc VaultServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{withCodec()}, opts...)
	createEntry := connect.NewUnaryHandler(VaultServiceCreateEntryProcedure, svc.CreateEntry, opts...)
	getEntry := connect.NewUnaryHandler(VaultServiceGetEntryProcedure, svc.GetEntry, opts...)
	deleteEntry := connect.NewUnaryHandler(VaultServiceDeleteEntryProcedure, svc.DeleteEntry, opts...)
	getTripSummary := connect.NewUnaryHandler(VaultServiceGetTripSummaryProcedure, svc.GetTripSummary, opts...)

	return "/" + VaultServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case VaultServiceCreateEntryProcedure:
			createEntry.ServeHTTP(w, r)
		case VaultServiceGetEntryProcedure:
			getEntry.ServeHTTP(w, r)
		case VaultServiceDeleteEntryProcedure:
			deleteEntry.ServeHTTP(w, r)
		case VaultServiceGetTripSummaryProcedure:
			getTripSummary.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// VaultServiceClient is a client for VaultService.
type VaultServiceClient interface {
	CreateEntry(context.Context, *connect.Request[api.CreateEntryRequest]) (*connect.Response[api.CreateEntryResponse], error)
	GetEntry(context.Context, *connect.Request[api.GetEntryRequest]) (*connect.Response[api.GetEntryResponse], error)
	DeleteEntry(context.Context, *connect.Request[api.DeleteEntryRequest]) (*connect.Response[api.DeleteEntryResponse], error)
	GetTripSummary(context.Context, *connect.Request[api.GetTripSummaryRequest]) (*connect.Response[api.GetTripSummaryResponse], error)
}

// NewVaultServiceClient constructs a client for VaultService at baseURL.
func NewVaultServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) VaultServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{withCodec()}, opts...)
	return &vaultServiceClient{
		createEntry:    connect.NewClient[api.CreateEntryRequest, api.CreateEntryResponse](httpClient, baseURL+VaultServiceCreateEntryProcedure, opts...),
		getEntry:       connect.NewClient[api.GetEntryRequest, api.GetEntryResponse](httpClient, baseURL+VaultServiceGetEntryProcedure, opts...),
		deleteEntry:    connect.NewClient[api.DeleteEntryRequest, api.DeleteEntryResponse](httpClient, baseURL+VaultServiceDeleteEntryProcedure, opts...),
		getTripSummary: connect.NewClient[api.GetTripSummaryRequest, api.GetTripSummaryResponse](httpClient, baseURL+VaultServiceGetTripSummaryProcedure, opts...),
	}
}

type vaultServiceClient struct {
	createEntry    *connect.Client[api.CreateEntryRequest, api.CreateEntryResponse]
	getEntry       *connect.Client[api.GetEntryRequest, api.GetEntryResponse]
	deleteEntry    *connect.Client[api.DeleteEntryRequest, api.DeleteEntryResponse]
	getTripSummary *connect.Client[api.GetTripSummaryRequest, api.GetTripSummaryResponse]
}

func (c *vaultServiceClient) CreateEntry(ctx context.Context, req *connect.Request[api.CreateEntryRequest]) (*connect.Response[api.CreateEntryResponse], error) {
	return c.createEntry.CallUnary(ctx, req)
}

func (c *vaultServiceClient) GetEntry(ctx context.Context, req *connect.Request[api.GetEntryRequest]) (*connect.Response[api.GetEntryResponse], error) {
	return c.getEntry.CallUnary(ctx, req)
}

func (c *vaultServiceClient) DeleteEntry(ctx context.Context, req *connect.Request[api.DeleteEntryRequest]) (*connect.Response[api.DeleteEntryResponse], error) {
	return c.deleteEntry.CallUnary(ctx, req)
}

func (c *vaultServiceClient) GetTripSummary(ctx context.Context, req *connect.Request[api.GetTripSummaryRequest]) (*connect.Response[api.GetTripSummaryResponse], error) {
	return c.getTripSummary.CallUnary(ctx, req)
}
