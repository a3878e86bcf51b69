// Command keygen generates the RSA keypair an examiner uses to receive
// encrypted evidence archives from the collector.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duskline/irkit/internal/crypto"
)

var (
	keySize        uint32
	privateKeyPath string
	publicKeyPath  string
	verbose        bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA keypair for evidence archive encryption",
		RunE:  runKeygen,
	}

	cmd.Flags().Uint32VarP(&keySize, "size", "s", 2048, "RSA modulus size in bits")
	cmd.Flags().StringVarP(&privateKeyPath, "private", "p", "", "path to write the private key")
	cmd.Flags().StringVarP(&publicKeyPath, "public", "u", "", "path to write the public key")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print progress to stderr")

	cmd.MarkFlagRequired("private")
	cmd.MarkFlagRequired("public")

	return cmd
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if verbose {
		fmt.Fprintf(os.Stderr, "generating %d-bit RSA keypair\n", keySize)
	}

	key, err := crypto.GenerateKeypair(int(keySize))
	if err != nil {
		return err
	}

	if err := crypto.SaveKeypair(key, privateKeyPath, publicKeyPath); err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "wrote private key to %s\n", privateKeyPath)
		fmt.Fprintf(os.Stderr, "wrote public key to %s\n", publicKeyPath)
	}
	return nil
}
