package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jetstack/sealx/internal/exchange"
	"github.com/jetstack/sealx/pkg/client"
)

var (
	sendServer        string
	sendPath          string
	sendData          string
	sendTimeout       time.Duration
	sendExchangeTTL   time.Duration
	sendSweepInterval time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sends one encrypted exchange to a server",
	Long: `Fetches the server's public key, encrypts the given JSON payload,
posts it, and prints the decrypted response. The payload can be given
inline or read from a file with @path.`,
	RunE: send,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.PersistentFlags().StringVarP(
		&sendServer,
		"server",
		"s",
		"http://localhost:8080",
		"Base URL of the server.",
	)
	sendCmd.PersistentFlags().StringVarP(
		&sendPath,
		"path",
		"p",
		"/api/test/echo",
		"Path to post the exchange to.",
	)
	sendCmd.PersistentFlags().StringVarP(
		&sendData,
		"data",
		"d",
		`{"userId":1,"message":"hello"}`,
		"JSON payload to encrypt, or @path to read it from a file.",
	)
	sendCmd.PersistentFlags().DurationVar(
		&sendTimeout,
		"timeout",
		30*time.Second,
		"How long to keep retrying the public key fetch.",
	)
	sendCmd.PersistentFlags().DurationVar(
		&sendExchangeTTL,
		"exchange-ttl",
		exchange.DefaultTTL,
		"How long an initiated exchange may wait for its response.",
	)
	sendCmd.PersistentFlags().DurationVar(
		&sendSweepInterval,
		"sweep-interval",
		exchange.DefaultSweepInterval,
		"How often expired exchanges are purged.",
	)
}

// newCorrelationStore builds the initiator-side store from the send flags.
func newCorrelationStore() *exchange.Store {
	return exchange.NewStore(sendExchangeTTL, sendSweepInterval)
}

func send(cmd *cobra.Command, args []string) error {
	payload := []byte(sendData)
	if strings.HasPrefix(sendData, "@") {
		var err error
		payload, err = os.ReadFile(strings.TrimPrefix(sendData, "@"))
		if err != nil {
			return err
		}
	}

	c, err := client.New(cmd.Context(), sendServer, newCorrelationStore(), sendTimeout)
	if err != nil {
		return err
	}

	plaintext, err := c.Post(cmd.Context(), sendPath, payload)
	if err != nil {
		return err
	}

	color.Green("-- POST %s", sendPath)
	color.Yellow("%s", plaintext)
	color.Green("-----")

	return nil
}
