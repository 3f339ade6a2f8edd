package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/resellerdesk/resellerdesk/scripts/internal"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "generate-encryption-key",
		Description: "Generate a random AES-256 key for secrets.encryption_key",
		Run:         internal.GenerateEncryptionKey,
	},
	{
		Name:        "encrypt-secret",
		Description: "Encrypt a panel or gateway secret for storage (SECRET)",
		Run:         internal.EncryptSecret,
	},
	{
		Name:        "issue-session",
		Description: "Issue a client portal session token (TENANT_ID, CLIENT_ID)",
		Run:         internal.IssueSession,
	},
	{
		Name:        "sign-webhook",
		Description: "Print signed headers for a local payment webhook (PAYMENT_ID)",
		Run:         internal.SignWebhook,
	},
	{
		Name:        "test-kafka",
		Description: "Check the configured kafka brokers are reachable",
		Run:         internal.TestKafkaConnection,
	},
}

func main() {
	var (
		listCommands bool
		cmdName      string
		tenantID     string
		clientID     string
		paymentID    string
		secret       string
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&tenantID, "tenant-id", "", "Tenant ID for operations")
	flag.StringVar(&clientID, "client-id", "", "Client ID for session operations")
	flag.StringVar(&paymentID, "payment-id", "", "External payment ID for webhook operations")
	flag.StringVar(&secret, "secret", "", "Plain text secret to encrypt")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-25s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	// Set command-specific environment variables
	if tenantID != "" {
		os.Setenv("TENANT_ID", tenantID)
	}
	if clientID != "" {
		os.Setenv("CLIENT_ID", clientID)
	}
	if paymentID != "" {
		os.Setenv("PAYMENT_ID", paymentID)
	}
	if secret != "" {
		os.Setenv("SECRET", secret)
	}

	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}
