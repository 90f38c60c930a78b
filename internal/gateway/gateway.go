package gateway

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vme50/paygate/internal/config"
	"github.com/vme50/paygate/internal/models"
	"github.com/vme50/paygate/internal/notificator"
	"github.com/vme50/paygate/internal/payment"
	"github.com/vme50/paygate/pkg/logger"
	"github.com/vme50/paygate/pkg/validation"
)

// Gateway is the main struct for the paygate application
// It contains all the necessary components to run the application
// and serves all business logic
type Gateway struct {
	logger *logger.Logger
	config *config.Config

	repo        models.Repository
	notificator *notificator.Notificator
}

// NewGateway creates a new Gateway instance
func NewGateway(
	repo models.Repository,
	notificator *notificator.Notificator,
	logger *logger.Logger,
	config *config.Config,
) models.GatewayI {
	return &Gateway{
		repo:        repo,
		logger:      logger,
		notificator: notificator,
		config:      config,
	}
}

// CreatePaywall creates a new payable link, filling omitted optional fields
// with the configured defaults. Links are immutable once created.
func (g *Gateway) CreatePaywall(params models.CreatePaywallParams) (*models.Paywall, error) {
	price := params.Price
	if price == "" {
		price = g.config.DefaultPrice
	}
	if err := g.validatePrice(price); err != nil {
		return nil, err
	}

	currency := params.Currency
	if currency == "" {
		currency = g.config.DefaultCurrency
	}

	title := params.Title
	if title == "" {
		title = g.config.PaywallTitle
	}

	description := params.Description
	if description == "" {
		description = g.config.PaywallDescription
	}

	paywall := &models.Paywall{
		ID:             uuid.NewString(),
		CreatorAddress: validation.NormalizeAddress(params.CreatorAddress),
		PayToAddress:   validation.NormalizeAddress(params.PayToAddress),
		Title:          title,
		Price:          price,
		Currency:       currency,
		Email:          params.Email,
		Description:    description,
		CreatedAt:      time.Now().Unix(),
	}

	if err := g.repo.CreatePaywall(paywall); err != nil {
		g.logger.Error("Failed to create paywall", "error", err, "creator", paywall.CreatorAddress)
		return nil, err
	}

	g.logger.Info("Paywall created", "id", paywall.ID, "creator", paywall.CreatorAddress, "price", paywall.Price)
	return paywall, nil
}

func (g *Gateway) GetPaywall(id string) (*models.Paywall, error) {
	return g.repo.GetPaywall(id)
}

func (g *Gateway) ListAllPaywalls() ([]*models.Paywall, error) {
	return g.repo.ListAllPaywalls()
}

func (g *Gateway) ListPaywallsByCreator(creatorAddress string) ([]*models.Paywall, error) {
	return g.repo.ListPaywallsByCreator(validation.NormalizeAddress(creatorAddress))
}

// RecordSubmission persists a settled submission. The row is only written
// after settlement succeeded, so every stored submission is paid and carries
// its settlement metadata. Forwarding to the creator runs in the background
// and cannot fail the call.
func (g *Gateway) RecordSubmission(paywall *models.Paywall, req models.SubmissionRequest, settlement models.SettlementInfo) (*models.Submission, error) {
	submission := &models.Submission{
		ID:            uuid.NewString(),
		PaywallID:     paywall.ID,
		Name:          req.Name,
		Contact:       req.Contact,
		Message:       req.Message,
		TxHash:        settlement.TxHash,
		WalletAddress: validation.NormalizeAddress(settlement.Payer),
		Paid:          true,
		CreatedAt:     time.Now().Unix(),
	}

	if err := g.repo.CreateSubmission(submission); err != nil {
		g.logger.Error("Failed to record submission", "error", err, "paywall", paywall.ID)
		return nil, err
	}

	g.logger.Info("Submission recorded", "id", submission.ID, "paywall", paywall.ID, "tx", submission.TxHash)
	go g.notificator.ForwardSubmission(paywall, submission)

	return submission, nil
}

func (g *Gateway) ListAllSubmissions() ([]*models.Submission, error) {
	return g.repo.ListAllSubmissions()
}

func (g *Gateway) ListSubmissionsByWallet(walletAddress string) ([]*models.Submission, error) {
	return g.repo.ListSubmissionsByWallet(validation.NormalizeAddress(walletAddress))
}

// Inbox returns a creator's submissions joined with link metadata and the
// total received per currency. Each paid submission contributes its link's
// price; totals are rendered with two decimals.
func (g *Gateway) Inbox(creatorAddress string) ([]*models.SubmissionWithPaywall, map[string]string, error) {
	submissions, err := g.repo.ListSubmissionsByCreator(validation.NormalizeAddress(creatorAddress))
	if err != nil {
		return nil, nil, err
	}

	totals := make(map[string]float64)
	for _, submission := range submissions {
		if !submission.Paid {
			continue
		}
		price, err := strconv.ParseFloat(submission.PaywallPrice, 64)
		if err != nil {
			g.logger.Warn("Skipping submission with unparseable price", "id", submission.ID, "price", submission.PaywallPrice)
			continue
		}
		totals[submission.PaywallCurrency] += price
	}

	totalReceived := make(map[string]string, len(totals))
	for currency, total := range totals {
		totalReceived[currency] = strconv.FormatFloat(total, 'f', 2, 64)
	}

	return submissions, totalReceived, nil
}

// validatePrice checks the price is a plain non-negative decimal string the
// asset can represent. A link that passes here always converts to atomic
// units later, so the payment branch and the inbox totals never see a price
// they cannot parse.
func (g *Gateway) validatePrice(price string) error {
	if _, err := payment.AtomicAmount(price, g.config.USDCDecimals); err != nil {
		return fmt.Errorf("%w: invalid price: %v", models.ErrValidation, err)
	}
	return nil
}
