package wechatpay

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
)

// NotificationHeaders carries the signature material delivered alongside a
// payment notification.
type NotificationHeaders struct {
	Timestamp string
	Nonce     string
	Signature string
	Serial    string
}

func (h NotificationHeaders) complete() bool {
	return h.Timestamp != "" && h.Nonce != "" && h.Signature != "" && h.Serial != ""
}

// NotificationVerifier validates webhook authenticity and decrypts the payload.
type NotificationVerifier interface {
	VerifyAndDecrypt(headers NotificationHeaders, body []byte) (*Transaction, error)
}

// DisabledVerifier rejects every notification when payment is not configured.
type DisabledVerifier struct{}

func (DisabledVerifier) VerifyAndDecrypt(NotificationHeaders, []byte) (*Transaction, error) {
	return nil, domainErrors.ErrPaymentDisabled
}

// Verifier checks inbound notifications against the provider's platform
// certificate and decrypts the AES-256-GCM resource with the API v3 key.
// It performs no persistence and is safe for concurrent use.
type Verifier struct {
	certs  map[string]*rsa.PublicKey
	apiKey []byte
	logger *slog.Logger
}

// NewVerifier builds a verifier from trusted platform certificates. The API
// v3 key must be exactly 32 bytes.
func NewVerifier(apiV3Key string, logger *slog.Logger, certs ...*x509.Certificate) (*Verifier, error) {
	if len(apiV3Key) != 32 {
		return nil, fmt.Errorf("api v3 key must be 32 bytes, got %d", len(apiV3Key))
	}

	byserial := make(map[string]*rsa.PublicKey, len(certs))
	for _, cert := range certs {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("platform certificate %s is not RSA", CertificateSerial(cert))
		}
		byserial[CertificateSerial(cert)] = pub
	}
	if len(byserial) == 0 {
		return nil, fmt.Errorf("no platform certificates provided")
	}

	return &Verifier{certs: byserial, apiKey: []byte(apiV3Key), logger: logger}, nil
}

// notificationBody mirrors the outer JSON envelope of a notification.
type notificationBody struct {
	EventType string `json:"event_type"`
	Resource  *struct {
		Algorithm      string `json:"algorithm"`
		Ciphertext     string `json:"ciphertext"`
		AssociatedData string `json:"associated_data"`
		Nonce          string `json:"nonce"`
	} `json:"resource"`
}

// VerifyAndDecrypt runs the single-shot validation pipeline: header checks,
// signature verification, then payload decryption. Signature verification
// happens before the ciphertext is touched.
func (v *Verifier) VerifyAndDecrypt(headers NotificationHeaders, body []byte) (*Transaction, error) {
	if !headers.complete() {
		return nil, fmt.Errorf("%w: missing signature headers", domainErrors.ErrInvalidArgument)
	}

	pub, ok := v.certs[headers.Serial]
	if !ok {
		v.logger.Error("notification signed with unknown certificate", slog.String("serial", headers.Serial))
		return nil, domainErrors.ErrSignatureInvalid
	}

	message := headers.Timestamp + "\n" + headers.Nonce + "\n" + string(body) + "\n"
	if err := verifySHA256WithRSA(pub, []byte(message), headers.Signature); err != nil {
		v.logger.Error("notification signature mismatch",
			slog.String("serial", headers.Serial),
			slog.String("timestamp", headers.Timestamp),
		)
		return nil, domainErrors.ErrSignatureInvalid
	}

	var envelope notificationBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed body", domainErrors.ErrInvalidArgument)
	}
	if envelope.Resource == nil {
		return nil, fmt.Errorf("%w: missing resource", domainErrors.ErrInvalidArgument)
	}

	plaintext, err := v.decrypt(envelope.Resource.Ciphertext, envelope.Resource.Nonce, envelope.Resource.AssociatedData)
	if err != nil {
		v.logger.Error("notification decryption failed", slog.String("event_type", envelope.EventType))
		return nil, domainErrors.ErrDecryptionFailed
	}

	var tx Transaction
	if err := json.Unmarshal(plaintext, &tx); err != nil {
		return nil, domainErrors.ErrDecryptionFailed
	}
	return &tx, nil
}

// decrypt opens the AEAD resource. The base64 ciphertext carries the 16-byte
// GCM authentication tag at its tail, which Open consumes as part of the
// combined input.
func (v *Verifier) decrypt(ciphertext, nonce, associatedData string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(v.apiKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	if len(raw) < gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext shorter than auth tag")
	}

	return gcm.Open(nil, []byte(nonce), raw, []byte(associatedData))
}
