package http_api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vme50/paygate/internal/config"
	"github.com/vme50/paygate/internal/gateway"
	"github.com/vme50/paygate/internal/models"
	"github.com/vme50/paygate/internal/moderation"
	"github.com/vme50/paygate/internal/notificator"
	"github.com/vme50/paygate/internal/payment"
	"github.com/vme50/paygate/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const (
	creatorAddr = "0x1111111111111111111111111111111111111111"
	payoutAddr  = "0x2222222222222222222222222222222222222222"
	payerAddr   = "0xabcd111111111111111111111111111111111111"
)

// fakeRepo is an in-memory models.Repository with the postgres adapter's
// contract (not-found wraps gorm.ErrRecordNotFound, case-insensitive wallet
// lookup).
type fakeRepo struct {
	paywalls    map[string]*models.Paywall
	submissions []*models.Submission

	createPaywallErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{paywalls: make(map[string]*models.Paywall)}
}

func (r *fakeRepo) CreatePaywall(p *models.Paywall) error {
	if r.createPaywallErr != nil {
		return r.createPaywallErr
	}
	r.paywalls[p.ID] = p
	return nil
}

func (r *fakeRepo) GetPaywall(id string) (*models.Paywall, error) {
	p, ok := r.paywalls[id]
	if !ok {
		return nil, fmt.Errorf("failed to get paywall: %w", gorm.ErrRecordNotFound)
	}
	return p, nil
}

func (r *fakeRepo) ListAllPaywalls() ([]*models.Paywall, error) {
	out := []*models.Paywall{}
	for _, p := range r.paywalls {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRepo) ListPaywallsByCreator(creatorAddress string) ([]*models.Paywall, error) {
	out := []*models.Paywall{}
	for _, p := range r.paywalls {
		if p.CreatorAddress == creatorAddress {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateSubmission(s *models.Submission) error {
	r.submissions = append(r.submissions, s)
	return nil
}

func (r *fakeRepo) ListAllSubmissions() ([]*models.Submission, error) {
	return r.submissions, nil
}

func (r *fakeRepo) ListSubmissionsByCreator(creatorAddress string) ([]*models.SubmissionWithPaywall, error) {
	out := []*models.SubmissionWithPaywall{}
	for _, s := range r.submissions {
		p, ok := r.paywalls[s.PaywallID]
		if !ok || p.CreatorAddress != creatorAddress {
			continue
		}
		out = append(out, &models.SubmissionWithPaywall{
			Submission:      *s,
			PaywallTitle:    p.Title,
			PaywallPrice:    p.Price,
			PaywallCurrency: p.Currency,
		})
	}
	return out, nil
}

func (r *fakeRepo) ListSubmissionsByWallet(walletAddress string) ([]*models.Submission, error) {
	out := []*models.Submission{}
	for _, s := range r.submissions {
		if strings.EqualFold(s.WalletAddress, walletAddress) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) Close() error { return nil }

// facilitatorStub stands in for the x402 facilitator. Settle calls are
// counted so tests can assert nothing was charged.
type facilitatorStub struct {
	*httptest.Server
	settleCalls atomic.Int64
	settleOK    bool
}

func newFacilitatorStub(settleOK bool) *facilitatorStub {
	stub := &facilitatorStub{settleOK: settleOK}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			w.Write([]byte(`{"isValid":true}`))
		case "/settle":
			stub.settleCalls.Add(1)
			if stub.settleOK {
				fmt.Fprintf(w, `{"success":true,"transaction":"0xdeadbeef","network":"base-sepolia","payer":%q}`, payerAddr)
			} else {
				w.Write([]byte(`{"success":false,"errorReason":"settlement failed"}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	return stub
}

func newTestServer(t *testing.T, repo models.Repository, facilitatorURL, moderationURL string) *HTTPServer {
	log, err := logger.NewLogger(true)
	require.NoError(t, err)

	cfg := &config.Config{
		Network:            "base-sepolia",
		USDCAddress:        "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		USDCDecimals:       6,
		FacilitatorURL:     facilitatorURL,
		ReceiverAddress:    "0x3928da62f59501fcabb35b387402d08136fe3c60",
		DefaultPrice:       "0.01",
		DefaultCurrency:    "USDC",
		PaywallTitle:       "Contact Creator",
		PaywallDescription: "Message Submission (x402 Protected)",
		ModerationAPIKey:   "test-key",
		ModerationBaseURL:  moderationURL,
		ModerationModel:    "deepseek-chat",
	}

	gatewayApp := gateway.NewGateway(repo, notificator.NewNotificator(log, nil, nil), log, cfg)
	server := NewHTTPServer(gatewayApp, moderation.NewService(cfg, log), payment.NewService(cfg, log), 0, log)
	return server.(*HTTPServer)
}

func seedPaywall(repo *fakeRepo, id, price string) *models.Paywall {
	paywall := &models.Paywall{
		ID:             id,
		CreatorAddress: creatorAddr,
		PayToAddress:   payoutAddr,
		Title:          "Link " + id,
		Price:          price,
		Currency:       "USDC",
		Email:          "creator@example.com",
		Description:    "Pay to reach me",
		CreatedAt:      1700000000,
	}
	repo.paywalls[id] = paywall
	return paywall
}

func doJSON(s *HTTPServer, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func paymentHeader() string {
	raw := `{"x402Version":1,"scheme":"exact","network":"base-sepolia","payload":{"signature":"0xsig","authorization":{"from":"` + payerAddr + `","to":"` + payoutAddr + `","value":"50000","validAfter":"0","validBefore":"9999999999","nonce":"0xabc"}}}`
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func TestCreatePaywall_Success(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/create", map[string]string{
		"creatorAddress": creatorAddr,
		"price":          "0.05",
		"currency":       "USDC",
		"email":          "creator@example.com",
		"description":    "Pay to reach me",
	}, nil)

	assert.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Success bool           `json:"success"`
		Data    models.Paywall `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "0.05", body.Data.Price)
	assert.Equal(t, "USDC", body.Data.Currency)
	assert.NotEmpty(t, body.Data.ID)
}

func TestCreatePaywall_DefaultPrice(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/create", map[string]string{
		"creatorAddress": creatorAddr,
		"email":          "creator@example.com",
	}, nil)

	assert.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data models.Paywall `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "0.01", body.Data.Price)
	assert.Equal(t, "USDC", body.Data.Currency)
}

func TestCreatePaywall_MissingEmail(t *testing.T) {
	s := newTestServer(t, newFakeRepo(), "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/create", map[string]string{
		"creatorAddress": creatorAddr,
		"price":          "0.05",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreatePaywall_InvalidCreatorAddress(t *testing.T) {
	s := newTestServer(t, newFakeRepo(), "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/create", map[string]string{
		"creatorAddress": "not-an-address",
		"email":          "creator@example.com",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

// Fraction and exponent price forms are rejected at creation so a stored
// price always converts to atomic units and always sums in inbox totals.
func TestCreatePaywall_NonDecimalPriceRejected(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	for _, price := range []string{"1/2", "1e6"} {
		resp := doJSON(s, http.MethodPost, "/api/paywall/create", map[string]string{
			"creatorAddress": creatorAddr,
			"price":          price,
			"email":          "creator@example.com",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, resp.Code, "price %q", price)
	}
	assert.Empty(t, repo.paywalls)
}

// A datastore failure is a 500 with a generic body; the driver error stays
// in the logs.
func TestCreatePaywall_RepositoryFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.createPaywallErr = errors.New("pq: connection refused")
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/create", map[string]string{
		"creatorAddress": creatorAddr,
		"price":          "0.05",
		"email":          "creator@example.com",
	}, nil)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotContains(t, resp.Body.String(), "connection refused")

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Failed to create paywall", body.Error)
}

func TestListPaywalls_MissingParam(t *testing.T) {
	s := newTestServer(t, newFakeRepo(), "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodGet, "/api/paywall/list", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListAllPaywalls(t *testing.T) {
	repo := newFakeRepo()
	seedPaywall(repo, "pw-1", "0.05")
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodGet, "/api/paywall/all", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Success bool              `json:"success"`
		Data    []*models.Paywall `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data, 1)
}

// A submission without proof must not create anything and must advertise the
// target link's own price, not the global default.
func TestSubmit_WithoutProofReturns402(t *testing.T) {
	repo := newFakeRepo()
	seedPaywall(repo, "pw-1", "0.05")
	facilitator := newFacilitatorStub(true)
	defer facilitator.Close()
	s := newTestServer(t, repo, facilitator.URL, "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/submit", map[string]string{
		"paywallId": "pw-1",
		"contact":   "a@b.com",
		"message":   "hi",
	}, nil)

	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Empty(t, repo.submissions)
	assert.EqualValues(t, 0, facilitator.settleCalls.Load())

	var body struct {
		X402Version int                      `json:"x402Version"`
		Error       string                   `json:"error"`
		Accepts     []map[string]interface{} `json:"accepts"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 1, body.X402Version)
	require.Len(t, body.Accepts, 1)
	// 0.05 USDC in atomic units (6 decimals), to the link's payout address
	assert.Equal(t, "50000", body.Accepts[0]["maxAmountRequired"])
	assert.Equal(t, payoutAddr, body.Accepts[0]["payTo"])
	assert.Equal(t, "base-sepolia", body.Accepts[0]["network"])
}

func TestSubmit_UnknownPaywall404(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/submit", map[string]string{
		"paywallId": "missing",
		"contact":   "a@b.com",
		"message":   "hi",
	}, nil)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Empty(t, repo.submissions)
}

func TestSubmit_MissingPaywallID(t *testing.T) {
	s := newTestServer(t, newFakeRepo(), "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/submit", map[string]string{
		"contact": "a@b.com",
		"message": "hi",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmit_ValidProofCreatesPaidSubmission(t *testing.T) {
	repo := newFakeRepo()
	seedPaywall(repo, "pw-1", "0.05")
	facilitator := newFacilitatorStub(true)
	defer facilitator.Close()
	s := newTestServer(t, repo, facilitator.URL, "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/submit", map[string]string{
		"paywallId": "pw-1",
		"name":      "Alice",
		"contact":   "a@b.com",
		"message":   "hi",
	}, map[string]string{"X-PAYMENT": paymentHeader()})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 1, facilitator.settleCalls.Load())

	var body struct {
		Success      bool   `json:"success"`
		SubmissionID string `json:"submissionId"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.SubmissionID)

	require.Len(t, repo.submissions, 1)
	submission := repo.submissions[0]
	assert.True(t, submission.Paid)
	assert.Equal(t, "0xdeadbeef", submission.TxHash)
	assert.Equal(t, payerAddr, submission.WalletAddress)

	// The submission shows up in the creator's inbox with totals.
	inboxResp := doJSON(s, http.MethodGet, "/api/paywall/inbox?creatorAddress="+creatorAddr, nil, nil)
	assert.Equal(t, http.StatusOK, inboxResp.Code)

	var inbox struct {
		Data struct {
			Submissions   []map[string]interface{} `json:"submissions"`
			TotalReceived map[string]string        `json:"totalReceived"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(inboxResp.Body.Bytes(), &inbox))
	require.Len(t, inbox.Data.Submissions, 1)
	assert.Equal(t, true, inbox.Data.Submissions[0]["paid"])
	assert.Equal(t, "0.05", inbox.Data.Submissions[0]["paywallPrice"])
	assert.Equal(t, map[string]string{"USDC": "0.05"}, inbox.Data.TotalReceived)
}

// Required fields are validated after verification but before settlement, so
// an incomplete submission is never charged.
func TestSubmit_MissingContactNotCharged(t *testing.T) {
	repo := newFakeRepo()
	seedPaywall(repo, "pw-1", "0.05")
	facilitator := newFacilitatorStub(true)
	defer facilitator.Close()
	s := newTestServer(t, repo, facilitator.URL, "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/submit", map[string]string{
		"paywallId": "pw-1",
		"message":   "hi",
	}, map[string]string{"X-PAYMENT": paymentHeader()})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, repo.submissions)
	assert.EqualValues(t, 0, facilitator.settleCalls.Load())
}

func TestSubmit_SettlementFailure402(t *testing.T) {
	repo := newFakeRepo()
	seedPaywall(repo, "pw-1", "0.05")
	facilitator := newFacilitatorStub(false)
	defer facilitator.Close()
	s := newTestServer(t, repo, facilitator.URL, "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/submit", map[string]string{
		"paywallId": "pw-1",
		"contact":   "a@b.com",
		"message":   "hi",
	}, map[string]string{"X-PAYMENT": paymentHeader()})

	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Empty(t, repo.submissions)
}

func TestSubmit_MalformedPaymentHeader402(t *testing.T) {
	repo := newFakeRepo()
	seedPaywall(repo, "pw-1", "0.05")
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/submit", map[string]string{
		"paywallId": "pw-1",
		"contact":   "a@b.com",
		"message":   "hi",
	}, map[string]string{"X-PAYMENT": "garbage"})

	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Empty(t, repo.submissions)
}

func TestMySubmissions_CaseInsensitive(t *testing.T) {
	repo := newFakeRepo()
	seedPaywall(repo, "pw-1", "0.05")
	repo.submissions = append(repo.submissions, &models.Submission{
		ID:            "sub-1",
		PaywallID:     "pw-1",
		Contact:       "a@b.com",
		Message:       "hi",
		WalletAddress: payerAddr,
		Paid:          true,
	})
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	// Stored lowercase, queried mixed-case
	resp := doJSON(s, http.MethodGet, "/api/paywall/my-submissions?address=0xABCD111111111111111111111111111111111111", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data []*models.Submission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
}

func TestMySubmissions_MissingParam(t *testing.T) {
	s := newTestServer(t, newFakeRepo(), "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodGet, "/api/paywall/my-submissions", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListAllSubmissions(t *testing.T) {
	repo := newFakeRepo()
	repo.submissions = append(repo.submissions, &models.Submission{ID: "sub-1", PaywallID: "pw-1", Paid: true})
	s := newTestServer(t, repo, "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodGet, "/api/paywall/submit", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestModerate_MissingMessage(t *testing.T) {
	s := newTestServer(t, newFakeRepo(), "http://localhost:0", "http://localhost:0")

	resp := doJSON(s, http.MethodPost, "/api/paywall/moderate", map[string]string{"name": "Alice"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

// The moderation endpoint fails open when the upstream classifier is down.
func TestModerate_FailsOpen(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // connection refused
	s := newTestServer(t, newFakeRepo(), "http://localhost:0", upstream.URL)

	resp := doJSON(s, http.MethodPost, "/api/paywall/moderate", map[string]string{"message": "hello"}, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var result moderation.Result
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.True(t, result.IsAppropriate)
	assert.NotEmpty(t, result.Warning)
}
