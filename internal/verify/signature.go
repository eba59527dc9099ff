package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
)

// Sign computes the request signature: hex-encoded HMAC-SHA256 of the
// license key, machine id and the timestamp as its decimal string, in that
// order with no separators. The framing must match the client exactly.
func Sign(secret []byte, licenseKey, machineID string, timestamp int64) string {
	mac := hmac.New(sha256.New, secret)
	io.WriteString(mac, licenseKey)
	io.WriteString(mac, machineID)
	io.WriteString(mac, strconv.FormatInt(timestamp, 10))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature recomputes the expected signature and compares in constant
// time. A captured signature is only useful within the replay window.
func ValidSignature(secret []byte, licenseKey, machineID string, timestamp int64, signature string) bool {
	expected := Sign(secret, licenseKey, machineID, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}
