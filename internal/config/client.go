package config

import "time"

// ClientConfig configures the cartsync terminal client.
type ClientConfig struct {
	HTTPURL        string
	WSURL          string
	AuthURL        string
	CheckoutURL    string
	RequestTimeout time.Duration
	LogLevel       string
}

// ClientFromEnv builds ClientConfig with defaults pointing at a local API.
func ClientFromEnv() ClientConfig {
	return ClientConfig{
		HTTPURL:        envOrDefault("SHOPSYNC_HTTP_URL", "http://localhost:4000/graphql"),
		WSURL:          envOrDefault("SHOPSYNC_WS_URL", "ws://localhost:4000/graphql"),
		AuthURL:        envOrDefault("AUTH_URL", "https://fakestoreapi.com/auth/login"),
		CheckoutURL:    envOrDefault("CHECKOUT_URL", "https://httpbin.org/post"),
		RequestTimeout: envDuration("REQUEST_TIMEOUT_SECONDS", 10*time.Second),
		LogLevel:       envOrDefault("LOG_LEVEL", "warn"),
	}
}
