// Package token implements the capability token used in credential-collection
// links. A token binds a batch id to an expiry: anyone holding a valid
// (id, exp, signature) triple may open the batch, so verification must be
// forgery-proof and strict about expiry.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const bearerPrefix = "Bearer "

// Sign computes the hex-encoded HMAC-SHA256 signature over "{id}:{exp}".
func Sign(id string, exp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%d", id, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented signature against id and the expiry carried in the
// link. An unparsable expiry fails, and an expiry equal to the current time
// counts as already expired. Signatures are fixed-length hex, so a length
// mismatch is rejected before the constant-time comparison.
func Verify(id, signature, expStr, secret string) bool {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return false
	}
	if exp <= time.Now().UnixMilli() {
		return false
	}
	expected := Sign(id, exp, secret)
	if len(signature) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// IsAuthed reports whether an Authorization header carries exactly
// "Bearer " + secret. The length check short-circuits safely (the secret's
// length is not itself secret); the byte comparison is constant-time.
func IsAuthed(authorization, secret string) bool {
	expected := bearerPrefix + secret
	if len(authorization) != len(expected) {
		return false
	}
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(authorization), []byte(expected)) == 1
}
