package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/pkg/constants"
)

const maxAsaasBody = 1 << 20

// VerifyAsaasRequest accepts either the shared access token or a hex
// HMAC-SHA256 of the raw body keyed with that token.
func VerifyAsaasRequest(token, accessToken, signature string, body []byte) bool {
	if token == "" {
		return false
	}
	if SecretMatches(token, accessToken) {
		return true
	}
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(signature), "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// Asaas stores a payment notification and acknowledges it
func (h *Handler) Asaas(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAsaasBody))
	if err != nil {
		badRequest(c, "Invalid payload")
		return
	}

	if !VerifyAsaasRequest(h.secrets.AsaasToken, c.GetHeader(constants.HeaderAsaasAccessToken), c.GetHeader(constants.HeaderAsaasSignature), body) {
		log.Printf("⚠️ Rejected Asaas webhook from %s", c.ClientIP())
		unauthorized(c)
		return
	}

	status, id, err := h.payments.ReceiveWebhook(c.Request.Context(), body)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "id": id})
}
