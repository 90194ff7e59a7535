package notifications

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"

	webpush "github.com/SherClockHolmes/webpush-go"
)

var testP256dh, testAuth = mustSubscriptionKeys()

func mustSubscriptionKeys() (string, string) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func generateVAPIDKeys() (string, string, error) {
	return webpush.GenerateVAPIDKeys()
}
