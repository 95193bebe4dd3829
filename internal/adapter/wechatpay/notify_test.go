package wechatpay

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"testing"
	"time"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
)

const testAPIKey = "0123456789abcdef0123456789abcdef"

func testPlatformCert(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(0x7EDA4C3F),
		Subject:      pkix.Name{CommonName: "Tenpay.com Root CA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return key, cert
}

func encryptResource(t *testing.T, plaintext, nonce, associatedData string) string {
	t.Helper()

	block, err := aes.NewCipher([]byte(testAPIKey))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("new gcm: %v", err)
	}
	sealed := gcm.Seal(nil, []byte(nonce), []byte(plaintext), []byte(associatedData))
	return base64.StdEncoding.EncodeToString(sealed)
}

// signedNotification builds a full notification: encrypted resource envelope
// plus headers signed by the platform key, the way the provider delivers it.
func signedNotification(t *testing.T, platformKey *rsa.PrivateKey, serial, payload string) (NotificationHeaders, []byte) {
	t.Helper()

	envelope := map[string]any{
		"id":         "evt-1",
		"event_type": "TRANSACTION.SUCCESS",
		"resource": map[string]string{
			"algorithm":       "AEAD_AES_256_GCM",
			"ciphertext":      encryptResource(t, payload, "abc123def456", "transaction"),
			"associated_data": "transaction",
			"nonce":           "abc123def456",
		},
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := "headnonce1234567"
	message := timestamp + "\n" + nonce + "\n" + string(body) + "\n"
	signature, err := signSHA256WithRSA(platformKey, []byte(message))
	if err != nil {
		t.Fatalf("sign notification: %v", err)
	}

	return NotificationHeaders{
		Timestamp: timestamp,
		Nonce:     nonce,
		Signature: signature,
		Serial:    serial,
	}, body
}

func TestVerifyAndDecryptSuccess(t *testing.T) {
	platformKey, cert := testPlatformCert(t)
	verifier, err := NewVerifier(testAPIKey, testLogger(), cert)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	payload := `{"out_trade_no":"M1700000000000000001","transaction_id":"4200099","trade_state":"SUCCESS"}`
	headers, body := signedNotification(t, platformKey, CertificateSerial(cert), payload)

	tx, err := verifier.VerifyAndDecrypt(headers, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.OutTradeNo != "M1700000000000000001" {
		t.Fatalf("unexpected order no %s", tx.OutTradeNo)
	}
	if tx.TransactionID != "4200099" {
		t.Fatalf("unexpected transaction id %s", tx.TransactionID)
	}
	if !tx.Succeeded() {
		t.Fatalf("expected success state, got %s", tx.TradeState)
	}
}

func TestVerifyAndDecryptNonSuccessState(t *testing.T) {
	platformKey, cert := testPlatformCert(t)
	verifier, err := NewVerifier(testAPIKey, testLogger(), cert)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	payload := `{"out_trade_no":"M2","transaction_id":"","trade_state":"NOTPAY"}`
	headers, body := signedNotification(t, platformKey, CertificateSerial(cert), payload)

	tx, err := verifier.VerifyAndDecrypt(headers, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Succeeded() {
		t.Fatal("NOTPAY must not report success")
	}
}

func TestVerifyRejectsMissingHeaders(t *testing.T) {
	platformKey, cert := testPlatformCert(t)
	verifier, err := NewVerifier(testAPIKey, testLogger(), cert)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	headers, body := signedNotification(t, platformKey, CertificateSerial(cert), `{}`)
	headers.Signature = ""

	if _, err := verifier.VerifyAndDecrypt(headers, body); !errors.Is(err, domainErrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	platformKey, cert := testPlatformCert(t)
	verifier, err := NewVerifier(testAPIKey, testLogger(), cert)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	headers, body := signedNotification(t, platformKey, CertificateSerial(cert), `{"trade_state":"SUCCESS"}`)
	headers.Signature = base64.StdEncoding.EncodeToString([]byte("forged signature"))

	if _, err := verifier.VerifyAndDecrypt(headers, body); !errors.Is(err, domainErrors.ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid, got %v", err)
	}
}

func TestVerifyRejectsUnknownSerial(t *testing.T) {
	platformKey, cert := testPlatformCert(t)
	verifier, err := NewVerifier(testAPIKey, testLogger(), cert)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	headers, body := signedNotification(t, platformKey, "FFFFFF", `{"trade_state":"SUCCESS"}`)

	if _, err := verifier.VerifyAndDecrypt(headers, body); !errors.Is(err, domainErrors.ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid, got %v", err)
	}
}

func TestVerifyRejectsCorruptedCiphertext(t *testing.T) {
	platformKey, cert := testPlatformCert(t)
	verifier, err := NewVerifier(testAPIKey, testLogger(), cert)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	envelope := map[string]any{
		"event_type": "TRANSACTION.SUCCESS",
		"resource": map[string]string{
			"algorithm":       "AEAD_AES_256_GCM",
			"ciphertext":      base64.StdEncoding.EncodeToString([]byte("garbage garbage garbage")),
			"associated_data": "transaction",
			"nonce":           "abc123def456",
		},
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := "headnonce1234567"
	message := timestamp + "\n" + nonce + "\n" + string(body) + "\n"
	signature, err := signSHA256WithRSA(platformKey, []byte(message))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	headers := NotificationHeaders{Timestamp: timestamp, Nonce: nonce, Signature: signature, Serial: CertificateSerial(cert)}

	if _, err := verifier.VerifyAndDecrypt(headers, body); !errors.Is(err, domainErrors.ErrDecryptionFailed) {
		t.Fatalf("expected decryption failed, got %v", err)
	}
}

func TestNewVerifierValidatesKeyLength(t *testing.T) {
	_, cert := testPlatformCert(t)
	if _, err := NewVerifier("short", testLogger(), cert); err == nil {
		t.Fatal("expected error for short api key")
	}
}

func TestDisabledVerifier(t *testing.T) {
	var v NotificationVerifier = DisabledVerifier{}
	if _, err := v.VerifyAndDecrypt(NotificationHeaders{}, nil); err != domainErrors.ErrPaymentDisabled {
		t.Fatalf("expected payment disabled, got %v", err)
	}
}
