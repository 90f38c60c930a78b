package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vme50/paygate/internal/models"
	"github.com/vme50/paygate/internal/payment"
	"github.com/vme50/paygate/pkg/validation"
)

// x402Version is the protocol version advertised in payment-required responses
const x402Version = 1

// CreatePaywallRequest represents the JSON body for link creation
type CreatePaywallRequest struct {
	CreatorAddress string `json:"creatorAddress" binding:"required"`
	PayToAddress   string `json:"payToAddress"`
	Title          string `json:"title"`
	Price          string `json:"price"`
	Currency       string `json:"currency"`
	Email          string `json:"email" binding:"required,email"`
	Description    string `json:"description"`
}

// ModerateRequest represents the JSON body for the moderation pre-check
type ModerateRequest struct {
	Message string `json:"message" binding:"required"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// InboxData is the payload of the creator inbox response
type InboxData struct {
	Submissions   []*models.SubmissionWithPaywall `json:"submissions"`
	TotalReceived map[string]string               `json:"totalReceived"`
}

// listAllPaywalls is a handler for GET /api/paywall/all.
// It returns every payable link for the public advertise hub.
func (s *HTTPServer) listAllPaywalls(c *gin.Context) {
	paywalls, err := s.gateway.ListAllPaywalls()
	if err != nil {
		s.logger.Error("Failed to list paywalls", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list paywalls",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": paywalls})
}

// createPaywall is a handler for POST /api/paywall/create.
func (s *HTTPServer) createPaywall(c *gin.Context) {
	var req CreatePaywallRequest

	// Parse and validate JSON request body
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	// Validate address formats
	if err := validation.ValidateAddress(req.CreatorAddress); err != nil {
		s.logger.Debug("Invalid creator address", "error", err, "address", req.CreatorAddress)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid creator address: " + err.Error(),
		})
		return
	}

	if req.PayToAddress != "" {
		if err := validation.ValidateAddress(req.PayToAddress); err != nil {
			s.logger.Debug("Invalid payout address", "error", err, "address", req.PayToAddress)
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid payout address: " + err.Error(),
			})
			return
		}
	}

	paywall, err := s.gateway.CreatePaywall(models.CreatePaywallParams{
		CreatorAddress: req.CreatorAddress,
		PayToAddress:   req.PayToAddress,
		Title:          req.Title,
		Price:          req.Price,
		Currency:       req.Currency,
		Email:          req.Email,
		Description:    req.Description,
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			s.logger.Debug("Rejected paywall parameters", "error", err, "creator", req.CreatorAddress)
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		// Datastore failure: log the detail, answer generically.
		s.logger.Error("Failed to create paywall", "error", err, "creator", req.CreatorAddress)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to create paywall",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": paywall})
}

// listPaywallsByCreator is a handler for GET /api/paywall/list.
func (s *HTTPServer) listPaywallsByCreator(c *gin.Context) {
	creatorAddress := c.Query("creatorAddress")
	if creatorAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "creatorAddress is required",
		})
		return
	}

	paywalls, err := s.gateway.ListPaywallsByCreator(creatorAddress)
	if err != nil {
		s.logger.Error("Failed to list paywalls by creator", "error", err, "creator", creatorAddress)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list paywalls",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": paywalls})
}

// inbox is a handler for GET /api/paywall/inbox.
// It returns a creator's received submissions plus per-currency totals.
func (s *HTTPServer) inbox(c *gin.Context) {
	creatorAddress := c.Query("creatorAddress")
	if creatorAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "creatorAddress is required",
		})
		return
	}

	submissions, totalReceived, err := s.gateway.Inbox(creatorAddress)
	if err != nil {
		s.logger.Error("Failed to fetch inbox", "error", err, "creator", creatorAddress)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch inbox",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": InboxData{
			Submissions:   submissions,
			TotalReceived: totalReceived,
		},
	})
}

// mySubmissions is a handler for GET /api/paywall/my-submissions.
// The wallet address match is case-insensitive.
func (s *HTTPServer) mySubmissions(c *gin.Context) {
	walletAddress := c.Query("address")
	if walletAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Wallet address is required",
		})
		return
	}

	submissions, err := s.gateway.ListSubmissionsByWallet(walletAddress)
	if err != nil {
		s.logger.Error("Failed to fetch submissions by wallet", "error", err, "address", walletAddress)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch submissions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": submissions})
}

// listAllSubmissions is a handler for GET /api/paywall/submit (dashboard view).
func (s *HTTPServer) listAllSubmissions(c *gin.Context) {
	submissions, err := s.gateway.ListAllSubmissions()
	if err != nil {
		s.logger.Error("Failed to list submissions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list submissions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": submissions})
}

// submitMessage is a handler for POST /api/paywall/submit.
//
// It is the payment gate: the request body is parsed once into a value, the
// target link is resolved, and payment terms are computed from that link for
// this request only. Without a valid X-PAYMENT proof the handler answers 402
// with the acceptable terms; with one, the proof is verified and settled via
// the facilitator and the submission is persisted with its settlement
// metadata.
func (s *HTTPServer) submitMessage(c *gin.Context) {
	var req models.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if req.PaywallID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "paywallId is required",
		})
		return
	}

	paywall, err := s.gateway.GetPaywall(req.PaywallID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "Paywall not found",
			})
			return
		}
		s.logger.Error("Failed to get paywall", "error", err, "id", req.PaywallID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get paywall",
		})
		return
	}

	requirements, err := s.payments.RequirementsFor(paywall, resourceURL(c))
	if err != nil {
		s.logger.Error("Failed to build payment requirements", "error", err, "paywall", paywall.ID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to build payment requirements",
		})
		return
	}

	header := c.GetHeader("X-PAYMENT")
	if header == "" {
		s.paymentRequired(c, "X-PAYMENT header is required", requirements)
		return
	}

	payload, err := payment.DecodePaymentHeader(header)
	if err != nil {
		s.logger.Debug("Malformed payment header", "error", err)
		s.paymentRequired(c, "Invalid or malformed payment header", requirements)
		return
	}

	if err := s.payments.Verify(payload, requirements); err != nil {
		s.logger.Debug("Payment verification failed", "error", err, "paywall", paywall.ID)
		s.paymentRequired(c, err.Error(), requirements)
		return
	}

	// Validate submission fields before settling so an incomplete
	// submission is never charged.
	if req.Contact == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "contact and message are required",
		})
		return
	}

	settlement, err := s.payments.Settle(payload, requirements)
	if err != nil {
		s.logger.Error("Settlement failed", "error", err, "paywall", paywall.ID)
		s.paymentRequired(c, err.Error(), requirements)
		return
	}

	submission, err := s.gateway.RecordSubmission(paywall, req, *settlement)
	if err != nil {
		s.logger.Error("Failed to save submission", "error", err, "paywall", paywall.ID, "tx", settlement.TxHash)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to save submission",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"submissionId": submission.ID,
	})
}

// moderate is a handler for POST /api/paywall/moderate.
// The moderation gate fails open: upstream failures yield an approving
// verdict so a degraded dependency never blocks legitimate senders.
func (s *HTTPServer) moderate(c *gin.Context) {
	var req ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Message is required",
		})
		return
	}

	result := s.moderation.Check(c.Request.Context(), req.Message, req.Name, req.Contact)
	c.JSON(http.StatusOK, result)
}

// paymentRequired answers the conditional-402 branch with the terms a client
// needs to construct a proof and retry.
func (s *HTTPServer) paymentRequired(c *gin.Context, reason string, requirements interface{}) {
	c.JSON(http.StatusPaymentRequired, gin.H{
		"x402Version": x402Version,
		"error":       reason,
		"accepts":     []interface{}{requirements},
	})
}

// resourceURL reconstructs the absolute URL of the protected resource for
// the payment requirements.
func resourceURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}
