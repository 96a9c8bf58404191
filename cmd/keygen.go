package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jetstack/sealx/internal/keywrap"
)

var (
	keygenBits int
	keygenDir  string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generates an RSA key pair for the server",
	Long: `Generates an RSA key pair and writes it as rsa_private_pkcs8.pem and
rsa_public.pem, ready to be passed to the serve command.`,
	RunE: keygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.PersistentFlags().IntVar(
		&keygenBits,
		"bits",
		2048,
		"RSA key size in bits. 2048 or larger.",
	)
	keygenCmd.PersistentFlags().StringVarP(
		&keygenDir,
		"out-dir",
		"o",
		".",
		"Directory where the key files are written.",
	)
}

func keygen(cmd *cobra.Command, args []string) error {
	key, err := keywrap.GenerateKeyPair(keygenBits)
	if err != nil {
		return err
	}

	privatePEM, err := keywrap.PrivateKeyToPEM(key)
	if err != nil {
		return err
	}
	publicPEM, err := keywrap.PublicKeyToPEM(&key.PublicKey)
	if err != nil {
		return err
	}

	privatePath := filepath.Join(keygenDir, "rsa_private_pkcs8.pem")
	publicPath := filepath.Join(keygenDir, "rsa_public.pem")

	if err := os.WriteFile(privatePath, privatePEM, 0600); err != nil {
		return err
	}
	if err := os.WriteFile(publicPath, publicPEM, 0644); err != nil {
		return err
	}

	fmt.Println("Private key written to ", privatePath)
	fmt.Println("Public key written to  ", publicPath)

	return nil
}
