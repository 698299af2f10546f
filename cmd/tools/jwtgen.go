package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"assettrack-api/internal/auth"
	"assettrack-api/internal/config"
)

func main() {
	var (
		username   = flag.String("user", "dev", "Username to embed in the token")
		expiryMins = flag.Int("expiry", 1440, "Token expiry in minutes (default: 24 hours)")
		secret     = flag.String("secret", "", "JWT secret (overrides JWT_SECRET env var)")
		issuer     = flag.String("issuer", "", "JWT issuer (overrides JWT_ISS env var)")
		audience   = flag.String("audience", "", "JWT audience (overrides JWT_AUD env var)")
	)
	flag.Parse()

	cfg := config.Load()
	if *secret != "" {
		cfg.JWTSecret = *secret
	}
	if *issuer != "" {
		cfg.JWTIssuer = *issuer
	}
	if *audience != "" {
		cfg.JWTAudience = *audience
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, time.Duration(*expiryMins)*time.Minute)
	token, err := jwtManager.GenerateToken(*username)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("JWT Token generated successfully!\n\n")
	fmt.Printf("Username: %s\n", *username)
	fmt.Printf("Expiry: %d minutes\n", *expiryMins)
	fmt.Printf("Issuer: %s\n", cfg.JWTIssuer)
	fmt.Printf("Audience: %s\n", cfg.JWTAudience)
	fmt.Printf("\nToken:\n%s\n\n", token)

	fmt.Printf("Usage example:\n")
	fmt.Printf("curl -H \"Authorization: Bearer %s\" http://localhost:8080/assets\n", token)
}
