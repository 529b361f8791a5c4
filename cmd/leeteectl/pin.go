package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leetee/internal/security"
)

var hashPINCmd = &cobra.Command{
	Use:   "hash-pin [pin]",
	Short: "Print the bcrypt hash of a grown-up reset PIN",
	Long: `Prints the value to put in RESET_PIN_HASH. The PIN is read from stdin
when not given as an argument, so it stays out of shell history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPIN,
}

func runHashPIN(cmd *cobra.Command, args []string) error {
	var pin string
	if len(args) == 1 {
		pin = args[0]
	} else {
		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		pin = line
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return errors.New("pin is required")
	}

	hash, err := security.HashPIN(pin)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
