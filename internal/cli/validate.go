package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"profilereg/internal/profile/models"
	"profilereg/internal/profile/username"
)

var errInvalidInput = errors.New("one or more inputs are invalid")

func validateCmd() *cobra.Command {
	var fields bool

	c := &cobra.Command{
		Use:   "validate NAME...",
		Short: "Check usernames (or field names) against the registry syntax",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false
			for _, arg := range args {
				var err error
				if fields {
					_, err = models.ParseFieldName(arg)
				} else {
					_, err = username.Parse(arg)
				}
				if err != nil {
					failed = true
					fmt.Fprintf(out, "%s\tINVALID\t%v\n", arg, err)
					continue
				}
				fmt.Fprintf(out, "%s\tOK\n", arg)
			}
			if failed {
				return errInvalidInput
			}
			return nil
		},
	}

	c.Flags().BoolVar(&fields, "field", false, "validate field names instead of usernames")
	return c
}
