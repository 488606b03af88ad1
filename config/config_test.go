package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentValidateRejectsUnsignedWebhooksInProduction(t *testing.T) {
	p := PaymentConfig{ProviderBaseURL: "https://pay.example.com"}
	assert.Error(t, p.Validate("production"))

	p.WebhookSecret = "hook-secret"
	assert.NoError(t, p.Validate("production"))
}

func TestPaymentValidateToleratesDevSetups(t *testing.T) {
	p := PaymentConfig{ProviderBaseURL: "https://pay.example.com"}
	assert.NoError(t, p.Validate("development"))

	// stub provider, no base URL: nothing to sign
	stub := PaymentConfig{}
	assert.NoError(t, stub.Validate("production"))
}
