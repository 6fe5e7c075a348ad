package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTranslateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "translate TEXT...",
		Short: "Replace clinical terms in TEXT with plain language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.translator()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tr.Translate(strings.Join(args, " ")))
			return nil
		},
	}
}
