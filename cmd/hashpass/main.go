// cmd/hashpass prints the argon2id hash of the admin passphrase read from
// stdin, for use as ARENA_AUTH_ADMIN_PASSPHRASE_HASH.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jason-s-yu/arena/internal/auth"
)

func main() {
	fmt.Fprint(os.Stderr, "admin passphrase: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "read passphrase: %v\n", err)
		os.Exit(1)
	}
	passphrase := strings.TrimRight(line, "\r\n")
	if passphrase == "" {
		fmt.Fprintln(os.Stderr, "empty passphrase")
		os.Exit(1)
	}

	hash, err := auth.HashPassphrase(passphrase, auth.DefaultParams)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
