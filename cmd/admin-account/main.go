package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"storefront-service/internal/auth"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/admin-account/main.go <email> <password>")
		fmt.Println("Example: go run cmd/admin-account/main.go owner@example.com \"s3cret-pass\"")
		os.Exit(1)
	}

	email := strings.ToLower(strings.TrimSpace(os.Args[1]))
	password := os.Args[2]
	if email == "" || strings.Contains(email, ":") {
		fmt.Fprintln(os.Stderr, "Email must be non-empty and must not contain ':'")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	entry := email + ":" + string(hash)
	// round-trip through the parser the service uses at startup
	if _, err := auth.ParseAccounts([]string{entry}); err != nil {
		fmt.Fprintf(os.Stderr, "Generated entry is not valid: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Admin account entry generated.\n\n")
	fmt.Printf("Add it to ADMIN_ACCOUNTS (comma separated for several admins):\n")
	fmt.Printf("ADMIN_ACCOUNTS=%s\n", entry)
}
