package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	config "github.com/mwangi-dev/kidsclass_backend/configs"
)

// VerifyWebhookSignature checks the provider's HMAC-SHA256 signature
// header against the raw request body. Events with a bad signature are
// never handed to the reconciler.
func VerifyWebhookSignature(body []byte, signature string) bool {
	secret := config.Config("PROVIDER_WEBHOOK_SECRET")
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
