// Command genkey prints a random TOKEN_SECRET.
package main

import (
	"fmt"
	"os"

	"github.com/subhodeep2005s/realtime-chat/internal/crypto"
)

func main() {
	secret, err := crypto.NewSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "genkey:", err)
		os.Exit(1)
	}

	fmt.Printf("TOKEN_SECRET=%s\n", secret)
}
