package test

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labtrack/go-liblab/catalog/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var globalSeed atomic.Int64

var nameParts = []string{
	"Aqua", "Terra", "Vita", "Norte", "Sur", "Lab", "Hidro", "Agro", "Eco", "Clara",
}

func RandomNames(n int) []string {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))

	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("%s%s %d", nameParts[rng.Intn(len(nameParts))], nameParts[rng.Intn(len(nameParts))], rng.Intn(1000))
	}
	return names
}

// RandomClients returns n clients with ids 1 to n.
func RandomClients(n int) []model.Client {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))

	clients := make([]model.Client, n)
	for i, name := range RandomNames(n) {
		clients[i] = model.Client{
			ID:     int64(i + 1),
			Name:   name,
			TaxID:  fmt.Sprintf("B%08d", rng.Intn(100000000)),
			Active: rng.Intn(4) != 0,
		}
	}
	return clients
}

// RandomRates returns n rates with ids 1 to n and prices in cents.
func RandomRates(n int) []model.Rate {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))

	rates := make([]model.Rate, n)
	for i, name := range RandomNames(n) {
		rates[i] = model.Rate{
			ID:       int64(i + 1),
			Name:     name,
			Price:    decimal.New(rng.Int63n(100000), -2),
			Discount: decimal.New(rng.Int63n(50), -2),
		}
	}
	return rates
}

// SessionToken returns a signed JWT for subject that expires at exp. A zero
// exp gives a token without expiry.
func SessionToken(t testing.TB, subject string, exp time.Time) string {
	claims := jwt.RegisteredClaims{Subject: subject}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}
