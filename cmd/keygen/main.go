// Package main generates the platform wallet keypair that pays loyalty rewards.
//
// The file uses the solana-keygen JSON format (an array of 64 numbers), so it
// can be imported into wallets and passed to the server via --keypair or the
// PLATFORM_WALLET_SECRET_KEY variable.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"tip-ledger/internal/solana"
)

func main() {
	out := flag.String("out", filepath.Join("wallets", "platform-wallet.json"), "Output keypair file")
	force := flag.Bool("force", false, "Overwrite an existing keypair file")
	flag.Parse()

	logger := log.New(os.Stderr, "[keygen] ", log.LstdFlags)

	if _, err := os.Stat(*out); err == nil && !*force {
		logger.Fatalf("%s already exists; refusing to overwrite a funded wallet (use --force)", *out)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Fatalf("Failed to check %s: %v", *out, err)
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			logger.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	kp, err := solana.GenerateKeypair()
	if err != nil {
		logger.Fatalf("Failed to generate keypair: %v", err)
	}
	if err := kp.WriteFile(*out); err != nil {
		logger.Fatalf("Failed to write keypair: %v", err)
	}

	fmt.Println(kp.PublicKey())
	logger.Printf("Keypair written to %s. Keep it private and fund the address before serving tips.", *out)
}
