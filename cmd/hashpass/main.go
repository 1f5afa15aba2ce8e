package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/minhacidade/backend/internal/auth"
)

func main() {
	legacy := pflag.Bool("bcrypt", false, "gera hash bcrypt em vez de Argon2id")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "uso: hashpass [--bcrypt] <senha>")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	hashFn := auth.Hash
	if *legacy {
		hashFn = auth.HashBcrypt
	}
	hash, err := hashFn(pflag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
