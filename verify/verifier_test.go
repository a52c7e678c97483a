package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func signHMAC(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, body)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// spec.md §8 invariant 3: every ingress endpoint with a configured secret
// rejects bodies whose signature does not verify.
func TestProperty_HMACVerifier_RejectsAnyTamperedBody(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a body that differs from the signed body never verifies", prop.ForAll(
		func(secret, body, tamper string) bool {
			if tamper == body {
				return true
			}
			v := NewHMACVerifier(secret, 5*time.Minute)
			header := signHMAC(secret, time.Now().Unix(), []byte(body))
			return v.Verify(header, []byte(tamper)) != nil
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("the exact signed body always verifies", prop.ForAll(
		func(secret, body string) bool {
			v := NewHMACVerifier(secret, 5*time.Minute)
			header := signHMAC(secret, time.Now().Unix(), []byte(body))
			return v.Verify(header, []byte(body)) == nil
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestHMACVerifier_RejectsMissingHeader(t *testing.T) {
	v := NewHMACVerifier("secret", 5*time.Minute)
	err := v.Verify("", []byte("body"))
	require.Error(t, err)
}

func TestHMACVerifier_RejectsStaleTimestamp(t *testing.T) {
	v := NewHMACVerifier("secret", time.Minute)
	header := signHMAC("secret", time.Now().Add(-time.Hour).Unix(), []byte("body"))
	err := v.Verify(header, []byte("body"))
	require.Error(t, err)
}

func TestSharedSecretVerifier_ExactMatchOnly(t *testing.T) {
	v := NewSharedSecretVerifier("correct-secret")
	assert.NoError(t, v.Verify("correct-secret", nil))
	assert.Error(t, v.Verify("wrong-secret", nil))
	assert.Error(t, v.Verify("", nil))
}

func TestNoopVerifier_AcceptsEverything(t *testing.T) {
	v := NoopVerifier{}
	assert.NoError(t, v.Verify("", []byte("anything")))
	assert.NoError(t, v.Verify("garbage", []byte("anything")))
}

func TestForSource_EmptySecretFallsBackToNoop(t *testing.T) {
	v := ForSource("calendar", "", time.Minute, true, zap.NewNop())
	assert.IsType(t, NoopVerifier{}, v)
}

func TestForSource_HMACVariantSelectsHMACVerifier(t *testing.T) {
	v := ForSource("calendar", "secret", time.Minute, true, zap.NewNop())
	assert.IsType(t, &HMACVerifier{}, v)
}

func TestForSource_SharedSecretVariantSelectsSharedSecretVerifier(t *testing.T) {
	v := ForSource("enrich", "secret", time.Minute, false, zap.NewNop())
	assert.IsType(t, &SharedSecretVerifier{}, v)
}
