package backend

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Signature headers understood by the backend.
const (
	HeaderTimestamp = "x-tp-ts"
	HeaderNonce     = "x-tp-nonce"
	HeaderSignature = "x-tp-sign"
)

// Signature computes the request signature over "METHOD\nPATH\nuserId=USER_ID\nTS\nNONCE":
// hex HMAC-SHA256 keyed with secret, or a plain hex SHA-256 digest when secret is empty.
func Signature(secret, method, path, userID, ts, nonce string) string {
	payload := strings.ToUpper(method) + "\n" + path + "\nuserId=" + userID + "\n" + ts + "\n" + nonce
	if secret == "" {
		sum := sha256.Sum256([]byte(payload))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Nonce returns 16 random bytes, hex encoded.
func Nonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(err)
	}
	return hex.EncodeToString(b)
}

// sign sets the timestamp, nonce and signature headers on req.
func sign(req *http.Request, secret, path, userID string, now time.Time) {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	nonce := Nonce()
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, Signature(secret, req.Method, path, userID, ts, nonce))
	req.Header.Set("accept", "application/json")
}
