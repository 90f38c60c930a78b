package models

import "errors"

// ErrValidation marks gateway errors caused by bad caller input, as opposed
// to datastore failures. Handlers map it to a 400 response.
var ErrValidation = errors.New("validation failed")

// CreatePaywallParams carries the creator-supplied fields for a new link.
// Empty optional fields are filled with configured defaults by the gateway.
type CreatePaywallParams struct {
	CreatorAddress string
	PayToAddress   string
	Title          string
	Price          string
	Currency       string
	Email          string
	Description    string
}

// SubmissionRequest is the parsed body of a submit call. It is decoded once
// and passed by value through the gate so no step re-reads the request body.
type SubmissionRequest struct {
	PaywallID string `json:"paywallId"`
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Message   string `json:"message"`
}

// SettlementInfo is the metadata extracted from a successful settlement.
type SettlementInfo struct {
	TxHash string
	Payer  string
}

// GatewayI is the business surface the HTTP layer talks to.
type GatewayI interface {
	CreatePaywall(params CreatePaywallParams) (*Paywall, error)
	GetPaywall(id string) (*Paywall, error)
	ListAllPaywalls() ([]*Paywall, error)
	ListPaywallsByCreator(creatorAddress string) ([]*Paywall, error)

	// RecordSubmission persists a settled submission and forwards it to the
	// creator. Forwarding is best-effort and never fails the call.
	RecordSubmission(paywall *Paywall, req SubmissionRequest, settlement SettlementInfo) (*Submission, error)

	ListAllSubmissions() ([]*Submission, error)
	ListSubmissionsByWallet(walletAddress string) ([]*Submission, error)

	// Inbox returns a creator's submissions joined with link metadata plus
	// the total received per currency, rendered with two decimals.
	Inbox(creatorAddress string) ([]*SubmissionWithPaywall, map[string]string, error)
}

// APIServer is implemented by the HTTP server.
type APIServer interface {
	Start()
	Shutdown() error
}
