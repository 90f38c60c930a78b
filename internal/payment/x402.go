package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/coinbase/x402/go/pkg/facilitatorclient"
	"github.com/coinbase/x402/go/pkg/types"

	"github.com/vme50/paygate/internal/config"
	"github.com/vme50/paygate/internal/models"
	"github.com/vme50/paygate/pkg/logger"
)

const (
	// Scheme is the only x402 payment scheme this gateway accepts.
	Scheme = "exact"
	// MaxTimeoutSeconds is how long a payment authorization stays valid.
	MaxTimeoutSeconds = 60
)

// Service builds per-link payment requirements and drives proof verification
// and settlement through an x402 facilitator.
type Service struct {
	logger *logger.Logger
	cfg    *config.Config

	facilitator *facilitatorclient.FacilitatorClient
}

func NewService(cfg *config.Config, logger *logger.Logger) *Service {
	facilitator := facilitatorclient.NewFacilitatorClient(&types.FacilitatorConfig{
		URL: cfg.FacilitatorURL,
	})

	return &Service{
		logger:      logger,
		cfg:         cfg,
		facilitator: facilitator,
	}
}

// RequirementsFor computes the payment terms for one link. The terms are
// request-scoped: price and recipient come from the resolved paywall, never
// from a process-wide policy, so every creator's link charges its own price
// to its own payout address.
func (s *Service) RequirementsFor(paywall *models.Paywall, resource string) (*types.PaymentRequirements, error) {
	amount, err := AtomicAmount(paywall.Price, s.cfg.USDCDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid price on paywall %s: %w", paywall.ID, err)
	}

	description := paywall.Description
	if description == "" {
		description = s.cfg.PaywallDescription
	}

	extra := json.RawMessage(fmt.Sprintf(`{"name":%q,"version":"2"}`, s.cfg.DefaultCurrency))

	return &types.PaymentRequirements{
		Scheme:            Scheme,
		Network:           s.cfg.Network,
		MaxAmountRequired: amount,
		Resource:          resource,
		Description:       description,
		MimeType:          "application/json",
		PayTo:             paywall.RecipientAddress(),
		MaxTimeoutSeconds: MaxTimeoutSeconds,
		Asset:             s.cfg.USDCAddress,
		Extra:             &extra,
	}, nil
}

// DecodePaymentHeader parses the base64-encoded X-PAYMENT request header
// into a payment payload.
func DecodePaymentHeader(header string) (*types.PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payment header: %w", err)
	}

	var payload types.PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payment payload: %w", err)
	}

	return &payload, nil
}

// Verify checks the proof against the requirements via the facilitator.
// A nil return means the proof is valid for these terms.
func (s *Service) Verify(payload *types.PaymentPayload, requirements *types.PaymentRequirements) error {
	resp, err := s.facilitator.Verify(payload, requirements)
	if err != nil {
		return fmt.Errorf("facilitator verify call failed: %w", err)
	}

	if !resp.IsValid {
		reason := "payment verification failed"
		if resp.InvalidReason != nil && *resp.InvalidReason != "" {
			reason = *resp.InvalidReason
		}
		return fmt.Errorf("%s", reason)
	}

	return nil
}

// Settle executes the payment on the settlement network via the facilitator
// and returns the transaction reference and payer address.
func (s *Service) Settle(payload *types.PaymentPayload, requirements *types.PaymentRequirements) (*models.SettlementInfo, error) {
	resp, err := s.facilitator.Settle(payload, requirements)
	if err != nil {
		return nil, fmt.Errorf("facilitator settle call failed: %w", err)
	}

	if !resp.Success {
		reason := "settlement failed"
		if resp.ErrorReason != nil && *resp.ErrorReason != "" {
			reason = *resp.ErrorReason
		}
		return nil, fmt.Errorf("%s", reason)
	}

	s.logger.Info("Payment settled", "tx", resp.Transaction, "payer", resp.Payer, "network", resp.Network)
	return &models.SettlementInfo{
		TxHash: resp.Transaction,
		Payer:  resp.Payer,
	}, nil
}

// AtomicAmount converts a decimal price string into the asset's atomic unit
// representation (e.g. "0.05" with 6 decimals -> "50000").
func AtomicAmount(price string, decimals int) (string, error) {
	// big.Rat.SetString also accepts fractions ("1/2") and exponents ("1e6");
	// only plain decimal strings may reach storage or the wire.
	if !plainDecimal(price) {
		return "", fmt.Errorf("not a decimal number: %q", price)
	}
	amount, ok := new(big.Rat).SetString(price)
	if !ok {
		return "", fmt.Errorf("not a decimal number: %q", price)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	amount.Mul(amount, new(big.Rat).SetInt(scale))
	if !amount.IsInt() {
		return "", fmt.Errorf("amount %q has more than %d decimal places", price, decimals)
	}

	return amount.Num().String(), nil
}

// plainDecimal reports whether s consists of digits with at most one inner
// decimal point, i.e. a non-negative decimal number.
func plainDecimal(s string) bool {
	if s == "" {
		return false
	}
	seenDot := false
	for i, r := range s {
		if r == '.' {
			if seenDot || i == 0 || i == len(s)-1 {
				return false
			}
			seenDot = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
