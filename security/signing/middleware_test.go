package signing

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/dispatchcore/dispatchcore"
	"github.com/dispatchcore/dispatchcore/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminalOK(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
	return dispatchcore.SuccessResult{}, nil
}

func newKeys() *StaticKeyProvider {
	keys := NewStaticKeyProvider()
	keys.SetKey("key-1", "message-signing", "", []byte("shared-secret"))
	return keys
}

func TestSigning_S6_OutgoingSignsOnSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyID = "key-1"
	cfg.Purpose = "message-signing"
	mw := NewMiddleware(cfg, newKeys(), nil)

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", map[string]any{"amount": 100})
	mc := dispatchcore.NewMessageContext(msg)
	mc.Items[dispatchcore.ItemMessageDirection] = dispatchcore.DirectionOutgoing

	res, err := mw.Invoke(context.Background(), msg, mc, terminalOK)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.NotEmpty(t, mc.PropertyString(dispatchcore.PropertyMessageSignature))
	assert.Equal(t, string(HMACSHA256), mc.PropertyString(dispatchcore.PropertySignatureAlgorithm))
}

func TestSigning_Base64FormatRoundTripsThroughVerification(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyID = "key-1"
	cfg.Purpose = "message-signing"
	cfg.Format = FormatBase64
	keys := newKeys()
	mw := NewMiddleware(cfg, keys, nil)

	body := map[string]any{"amount": 100}
	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", body)
	outMC := dispatchcore.NewMessageContext(msg)
	outMC.Items[dispatchcore.ItemMessageDirection] = dispatchcore.DirectionOutgoing

	_, err := mw.Invoke(context.Background(), msg, outMC, terminalOK)
	require.NoError(t, err)
	sig := outMC.PropertyString(dispatchcore.PropertyMessageSignature)
	require.NotEmpty(t, sig)
	_, b64Err := base64.StdEncoding.DecodeString(sig)
	assert.NoError(t, b64Err, "signature should be valid base64, not hex")

	inMC := dispatchcore.NewMessageContext(msg)
	inMC.Items[dispatchcore.ItemMessageDirection] = dispatchcore.DirectionIncoming
	inMC.Items[dispatchcore.ItemMessageSignature] = sig

	res, err := mw.Invoke(context.Background(), msg, inMC, terminalOK)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
}

func TestSigning_OutgoingSkipsSigningWhenInnerResultFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyID = "key-1"
	cfg.Purpose = "message-signing"
	mw := NewMiddleware(cfg, newKeys(), nil)

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc := dispatchcore.NewMessageContext(msg)
	mc.Items[dispatchcore.ItemMessageDirection] = dispatchcore.DirectionOutgoing

	failing := func(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
		return dispatchcore.FailureResult{}, nil
	}
	_, err := mw.Invoke(context.Background(), msg, mc, failing)
	require.NoError(t, err)
	assert.Empty(t, mc.PropertyString(dispatchcore.PropertyMessageSignature))
}

func TestSigning_IncomingVerifiesValidSignature(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyID = "key-1"
	cfg.Purpose = "message-signing"
	keys := newKeys()

	body := map[string]any{"amount": 100}
	canonical, err := (serializer.JSONSerializer{}).Serialize(body)
	require.NoError(t, err)
	sig, err := computeSignature(HMACSHA256, FormatHex, []byte("shared-secret"), canonical)
	require.NoError(t, err)

	mw := NewMiddleware(cfg, keys, nil)
	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", body)
	mc := dispatchcore.NewMessageContext(msg)
	mc.Items[dispatchcore.ItemMessageSignature] = sig

	called := false
	res, err := mw.Invoke(context.Background(), msg, mc, func(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
		called = true
		return dispatchcore.SuccessResult{}, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, res.Succeeded())
}

func TestSigning_IncomingRejectsBadSignature(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyID = "key-1"
	cfg.Purpose = "message-signing"
	mw := NewMiddleware(cfg, newKeys(), nil)

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", map[string]any{"amount": 100})
	mc := dispatchcore.NewMessageContext(msg)
	mc.Items[dispatchcore.ItemMessageSignature] = "0000deadbeef"

	res, err := mw.Invoke(context.Background(), msg, mc, terminalOK)
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
}

func TestSigning_IncomingMissingSignatureRequiredFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireValidSignature = true
	mw := NewMiddleware(cfg, newKeys(), nil)

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc := dispatchcore.NewMessageContext(msg)

	res, err := mw.Invoke(context.Background(), msg, mc, terminalOK)
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
}

func TestSigning_IncomingMissingSignatureNotRequiredPasses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireValidSignature = false
	mw := NewMiddleware(cfg, newKeys(), nil)

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc := dispatchcore.NewMessageContext(msg)

	res, err := mw.Invoke(context.Background(), msg, mc, terminalOK)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
}

func TestSigning_StaleSignatureRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyID = "key-1"
	cfg.Purpose = "message-signing"
	cfg.MaxSignatureAge = time.Millisecond
	keys := newKeys()

	body := map[string]any{"amount": 100}
	canonical, err := (serializer.JSONSerializer{}).Serialize(body)
	require.NoError(t, err)
	sig, err := computeSignature(HMACSHA256, FormatHex, []byte("shared-secret"), canonical)
	require.NoError(t, err)

	mw := NewMiddleware(cfg, keys, nil)
	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", body)
	mc := dispatchcore.NewMessageContext(msg)
	mc.Items[dispatchcore.ItemMessageSignature] = sig
	mc.Items["SignedAt"] = time.Now().Add(-time.Hour)

	res, err := mw.Invoke(context.Background(), msg, mc, terminalOK)
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
}
