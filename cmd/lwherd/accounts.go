package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/quailyquaily/lwherd/accounts"
	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and edit the accounts file",
	}
	cmd.PersistentFlags().String("accounts", "", "Path to the accounts JSON file.")
	cmd.AddCommand(newAccountsListCmd())
	cmd.AddCommand(newAccountsAddCmd())
	return cmd
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := accounts.NewStore(flagOrViperString(cmd, "accounts", "lw.accounts_file"))
			list, err := store.Load(cmd.Context())
			if err != nil && !errors.Is(err, accounts.ErrCreatedPlaceholder) {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "REMARK\tDEVICE_ID\tWXID\tPROXY")
			for _, a := range list {
				proxy := ""
				if a.Proxy != nil {
					proxy = fmt.Sprintf("%s:%d", a.Proxy.Host, a.Proxy.Port)
				}
				wxid := a.Wxid
				if wxid == "" {
					wxid = "-"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Label(), a.DeviceID, wxid, proxy)
			}
			return w.Flush()
		},
	}
}

func newAccountsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account with a fresh device id",
		RunE: func(cmd *cobra.Command, args []string) error {
			remark := strings.TrimSpace(flagOrViperString(cmd, "remark", ""))
			if remark == "" {
				return fmt.Errorf("missing --remark")
			}

			store := accounts.NewStore(flagOrViperString(cmd, "accounts", "lw.accounts_file"))
			list, err := store.Load(cmd.Context())
			if err != nil && !errors.Is(err, accounts.ErrCreatedPlaceholder) {
				return err
			}
			for _, a := range list {
				if a.Remark == remark {
					return fmt.Errorf("account %q already exists", remark)
				}
			}

			acct := accounts.Account{DeviceID: accounts.NewDeviceID(), Remark: remark}
			list = append(list, acct)
			if err := store.Save(cmd.Context(), list); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s (device %s)\n", remark, acct.DeviceID)
			return nil
		},
	}
	cmd.Flags().String("remark", "", "Human-readable name for the account.")
	return cmd
}
