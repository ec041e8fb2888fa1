package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/faktura/internal/format"
	"github.com/garyjia/faktura/pkg/utils"
)

func (a *app) validateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check NIP numbers, bank accounts and postal codes",
	}

	checks := []struct {
		use   string
		short string
		check func(string) bool
	}{
		{use: "nip <nip>", short: "Validate a NIP checksum", check: utils.ValidateNIP},
		{use: "account <iban>", short: "Validate a Polish IBAN", check: utils.ValidateBankAccount},
		{use: "postal <text>", short: "Check for an NN-NNN postal code", check: utils.ValidatePostalCode},
	}

	for _, c := range checks {
		check := c.check
		name := strings.Fields(c.use)[0]
		cmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !check(args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), "invalid")
					return fmt.Errorf("invalid %s: %q", name, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), "valid")
				return nil
			},
		})
	}
	return cmd
}

func (a *app) wordsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "words <amount>",
		Short:   "Spell the whole-złoty part of an amount in Polish",
		Example: "  faktura words 1234,56",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(strings.ReplaceAll(args[0], ",", "."), 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}

			words, err := format.NumberToWords(int64(math.Floor(amount)))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), words)
			return nil
		},
	}
}
