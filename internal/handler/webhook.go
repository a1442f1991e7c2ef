package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
)

const signatureHeader = "X-Webhook-Signature"

// WebhookHandler receives chain-watcher notifications that settle pending
// deposits. Deliveries may repeat, so settling twice is reported, not failed.
type WebhookHandler struct {
	deposits depositSettler
	secret   string
}

func NewWebhookHandler(deposits depositSettler, secret string) *WebhookHandler {
	return &WebhookHandler{deposits: deposits, secret: secret}
}

type depositWebhookPayload struct {
	DepositID string `json:"deposit_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=confirmed failed"`
	Reason    string `json:"reason" validate:"required_if=Status failed,max=500"`
}

func (h *WebhookHandler) ReceiveDepositWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if !verifyHMAC(body, r.Header.Get(signatureHeader), h.secret) {
		log.Warn("webhook signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload depositWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := validationErrors(validate.Struct(&payload)); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	depositID := uuid.MustParse(payload.DepositID)
	if payload.Status == string(domain.DepositStatusConfirmed) {
		_, err = h.deposits.ConfirmDeposit(r.Context(), depositID)
	} else {
		_, err = h.deposits.FailDeposit(r.Context(), depositID, payload.Reason)
	}

	if errors.Is(err, domain.ErrAlreadySettled) {
		log.Info("webhook for settled deposit ignored", "deposit_id", depositID, "status", payload.Status)
		RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_settled"})
		return
	}
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	log.Info("deposit settled from webhook", "deposit_id", depositID, "status", payload.Status)
	RespondSuccess(w, http.StatusOK, map[string]string{"status": payload.Status})
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
