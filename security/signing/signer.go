package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
)

func computeSignature(alg Algorithm, format Format, key, message []byte) (string, error) {
	var mac hash.Hash
	switch alg {
	case HMACSHA256:
		mac = hmac.New(sha256.New, key)
	case HMACSHA512:
		mac = hmac.New(sha512.New, key)
	default:
		return "", fmt.Errorf("signing: unsupported algorithm %q", alg)
	}
	mac.Write(message)
	return encode(format, mac.Sum(nil)), nil
}

func verifySignature(alg Algorithm, format Format, key, message []byte, signature string) (bool, error) {
	expected, err := computeSignature(alg, format, key, message)
	if err != nil {
		return false, err
	}
	expectedBytes, err := decode(format, expected)
	if err != nil {
		return false, err
	}
	actualBytes, err := decode(format, signature)
	if err != nil {
		return false, nil
	}
	return hmac.Equal(expectedBytes, actualBytes), nil
}

func encode(format Format, data []byte) string {
	if format == FormatBase64 {
		return base64.StdEncoding.EncodeToString(data)
	}
	return hex.EncodeToString(data)
}

func decode(format Format, s string) ([]byte, error) {
	if format == FormatBase64 {
		return base64.StdEncoding.DecodeString(s)
	}
	return hex.DecodeString(s)
}
