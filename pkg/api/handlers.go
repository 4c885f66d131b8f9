package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tokenmint/pkg/fee"
	"tokenmint/pkg/payment"
	"tokenmint/pkg/token"
	"tokenmint/pkg/types"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	maxBodyBytes = 1 << 20
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report JSON field names in validation errors
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// PaymentBuilder builds unsigned fee payment transactions
type PaymentBuilder interface {
	BuildPaymentTransaction(ctx context.Context, payer string, feeSOL decimal.Decimal) (string, error)
}

// PaymentVerifier checks the ledger for fee payments
type PaymentVerifier interface {
	VerifyByHistory(ctx context.Context, sender string, minLamports uint64) (bool, error)
	VerifyByReference(ctx context.Context, reference, sender, receiver string, minLamports uint64) (payment.MatchResult, error)
	Operator() solana.PublicKey
}

// TokenService creates tokens idempotently
type TokenService interface {
	CreateToken(ctx context.Context, key string, req types.MintRequest) (*types.MintResult, bool, error)
}

// Handlers serves the HTTP API
type Handlers struct {
	calculator *fee.Calculator
	builder    PaymentBuilder
	verifier   PaymentVerifier
	tokens     TokenService
	network    string
	log        *slog.Logger
}

// FeeResponse is the fee quote for a set of options
type FeeResponse struct {
	TotalFee         float64 `json:"totalFee"`
	TotalFeeLamports uint64  `json:"totalFeeLamports"`
	Options          int     `json:"options"`
}

// BuildPaymentRequest asks for an unsigned fee transfer
type BuildPaymentRequest struct {
	Payer    string          `json:"payer" validate:"required"`
	TotalFee decimal.Decimal `json:"totalFee"`
}

// BuildPaymentResponse carries the base64 unsigned transaction
type BuildPaymentResponse struct {
	Transaction string `json:"transaction"`
}

// VerifyPaymentRequest asks whether payer has paid expectedFee recently
type VerifyPaymentRequest struct {
	Payer       string          `json:"payer" validate:"required"`
	ExpectedFee decimal.Decimal `json:"expectedFee"`
}

// VerifyPaymentResponse reports the history scan verdict
type VerifyPaymentResponse struct {
	Paid bool `json:"paid"`
}

// VerifyReferenceRequest asks whether a specific transaction paid expectedFee
type VerifyReferenceRequest struct {
	Reference   string          `json:"reference" validate:"required"`
	Payer       string          `json:"payer" validate:"required"`
	ExpectedFee decimal.Decimal `json:"expectedFee"`
}

// VerifyReferenceResponse reports the reference verdict
type VerifyReferenceResponse struct {
	Matched bool                `json:"matched"`
	Reason  string              `json:"reason"`
	Claim   *types.PaymentClaim `json:"claim,omitempty"`
}

// CreateTokenRequest is the create-token body. SecretKey is the caller's
// keypair and is dropped once the request finishes.
type CreateTokenRequest struct {
	SecretKey        string          `json:"secretKey" validate:"required"`
	Name             string          `json:"name" validate:"required,max=32"`
	Symbol           string          `json:"symbol" validate:"required,max=10"`
	Decimals         uint8           `json:"decimals" validate:"lte=9"`
	InitialSupply    decimal.Decimal `json:"initialSupply"`
	MetadataURI      string          `json:"metadataUri" validate:"omitempty,url,max=200"`
	Payer            string          `json:"payer" validate:"required"`
	PaymentReference string          `json:"paymentReference" validate:"required"`
	ExpectedFee      decimal.Decimal `json:"expectedFee"`
	types.FeeOptions
}

// CreateTokenResponse describes the created token
type CreateTokenResponse struct {
	types.MintResult
	Message  string `json:"message"`
	Replayed bool   `json:"replayed,omitempty"`
}

// ConfigResponse exposes the public service settings
type ConfigResponse struct {
	OperatorAddress string  `json:"operatorAddress"`
	Network         string  `json:"network"`
	BaseFee         float64 `json:"baseFee"`
	OptionSurcharge float64 `json:"optionSurcharge"`
}

func (h *Handlers) handleFee(w http.ResponseWriter, r *http.Request) {
	var opts types.FeeOptions
	if err := decodeBody(w, r, &opts, true); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	quote := h.calculator.ComputeFee(opts)
	writeJSON(w, http.StatusOK, FeeResponse{
		TotalFee:         quote.Total.InexactFloat64(),
		TotalFeeLamports: quote.Lamports,
		Options:          quote.Options,
	})
}

func (h *Handlers) handleBuildPayment(w http.ResponseWriter, r *http.Request) {
	var req BuildPaymentRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	tx, err := h.builder.BuildPaymentTransaction(r.Context(), req.Payer, req.TotalFee)
	if err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, BuildPaymentResponse{Transaction: tx})
}

func (h *Handlers) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	lamports, err := expectedLamports(req.ExpectedFee)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	paid, err := h.verifier.VerifyByHistory(r.Context(), req.Payer, lamports)
	if err != nil {
		writeError(w, h.log, err, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, VerifyPaymentResponse{Paid: paid})
}

func (h *Handlers) handleVerifyReference(w http.ResponseWriter, r *http.Request) {
	var req VerifyReferenceRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	lamports, err := expectedLamports(req.ExpectedFee)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := h.verifier.VerifyByReference(r.Context(), req.Reference, req.Payer, h.verifier.Operator().String(), lamports)
	if err != nil {
		writeError(w, h.log, err, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, VerifyReferenceResponse{
		Matched: result.Matched,
		Reason:  string(result.Reason),
		Claim:   result.Claim,
	})
}

func (h *Handlers) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	owner, err := token.ParseSecretKey(req.SecretKey)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.SecretKey = ""

	mintReq := types.MintRequest{
		Owner:            owner,
		Name:             req.Name,
		Symbol:           req.Symbol,
		Decimals:         req.Decimals,
		InitialSupply:    req.InitialSupply,
		Options:          req.FeeOptions,
		MetadataURI:      req.MetadataURI,
		Payer:            req.Payer,
		PaymentReference: req.PaymentReference,
		DeclaredFee:      req.ExpectedFee,
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	result, replayed, err := h.tokens.CreateToken(r.Context(), key, mintReq)
	if err != nil {
		writeError(w, h.log, err, http.StatusServiceUnavailable)
		return
	}

	resp := CreateTokenResponse{
		MintResult: *result,
		Message:    "Token created successfully",
		Replayed:   replayed,
	}
	if replayed {
		w.Header().Set(ReplayedHeader, "true")
		resp.Message = "Token already created for this request"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	schedule := h.calculator.Schedule()
	writeJSON(w, http.StatusOK, ConfigResponse{
		OperatorAddress: h.verifier.Operator().String(),
		Network:         h.network,
		BaseFee:         schedule.Base.InexactFloat64(),
		OptionSurcharge: schedule.Surcharge.InexactFloat64(),
	})
}

// decodeBody reads a JSON body into dst and validates its struct tags. An
// empty body is accepted only when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("malformed JSON body: %v", err)
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return validationMessage(verrs)
		}
		return fmt.Errorf("validation failed: %v", err)
	}
	return nil
}

func validationMessage(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a URL", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func expectedLamports(expected decimal.Decimal) (uint64, error) {
	if !expected.IsPositive() {
		return 0, errors.New("expectedFee must be greater than 0")
	}
	lamports, err := fee.ToLamports(expected)
	if err != nil {
		return 0, fmt.Errorf("expectedFee: %v", err)
	}
	return lamports, nil
}
