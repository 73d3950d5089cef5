package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tripnest/booking-backend/internal/utils"
	"github.com/tripnest/booking-backend/pkg/jwt"
)

func main() {
	var (
		userFlag  string
		roleFlag  string
		emailFlag string
		ttlFlag   time.Duration
	)
	flag.StringVar(&userFlag, "user", "", "user id to sign a development access token for")
	flag.StringVar(&roleFlag, "role", "customer", "comma separated roles for the token")
	flag.StringVar(&emailFlag, "email", "", "email claim for the token")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("JWT Secret Generator for TripNest")
	fmt.Println("===========================================")
	fmt.Println()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		generated, err := utils.GenerateJWTSecret()
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		secret = generated

		fmt.Println("Add this to your .env file:")
		fmt.Println()
		fmt.Printf("JWT_SECRET=%s\n", secret)
		fmt.Println()
	} else {
		fmt.Println("Using JWT_SECRET from the environment")
		fmt.Println()
	}

	if userFlag == "" {
		fmt.Println("Keep this secret safe and never commit it to version control.")
		return
	}

	userID, err := uuid.Parse(userFlag)
	if err != nil {
		log.Fatalf("Invalid -user %q: %v", userFlag, err)
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "tripnest-booking"
	}

	roles := strings.Split(roleFlag, ",")
	for i := range roles {
		roles[i] = strings.TrimSpace(roles[i])
	}

	service := jwt.NewService(secret, issuer, ttlFlag)
	token, err := service.GenerateAccessToken(userID, emailFlag, roles)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	expiresAt, err := service.GetTokenExpiry(token)
	if err != nil {
		log.Fatalf("Failed to read token expiry: %v", err)
	}

	fmt.Printf("Development access token for %s (%s):\n", userID, roleFlag)
	fmt.Println()
	fmt.Printf("Authorization: Bearer %s\n", token)
	fmt.Println()
	fmt.Printf("Expires at: %s\n", expiresAt.Format(time.RFC3339))
}
