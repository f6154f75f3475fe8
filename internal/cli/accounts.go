package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"seatrush/internal/store"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the stored login credentials",
	}
	cmd.AddCommand(newAccountsListCmd())
	cmd.AddCommand(newAccountsAddCmd())
	cmd.AddCommand(newAccountsRemoveCmd())
	return cmd
}

func newAccountsListCmd() *cobra.Command {
	var siteID string

	c := &cobra.Command{
		Use:   "list",
		Short: "List accounts stored for a site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			accounts, err := store.New(cfg.AccountsFile).List(siteID)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Fprintf(os.Stdout, "no accounts stored for %q\n", siteID)
				return nil
			}
			for i, a := range accounts {
				fmt.Fprintf(os.Stdout, "%2d  %s\n", i, a.Username)
			}
			return nil
		},
	}

	c.Flags().StringVar(&siteID, "site", "yes24", "site id")
	return c
}

func newAccountsAddCmd() *cobra.Command {
	var siteID, username, password string

	c := &cobra.Command{
		Use:   "add",
		Short: "Store one account for a site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			s := store.New(cfg.AccountsFile)
			if err := s.Add(siteID, store.Account{Username: username, Password: password}); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "stored %q for %q\n", username, siteID)
			return nil
		},
	}

	c.Flags().StringVar(&siteID, "site", "yes24", "site id")
	c.Flags().StringVar(&username, "username", "", "login id")
	c.Flags().StringVar(&password, "password", "", "login password")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}

func newAccountsRemoveCmd() *cobra.Command {
	var siteID string
	var index int

	c := &cobra.Command{
		Use:   "remove",
		Short: "Remove one stored account by its list index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			if err := store.New(cfg.AccountsFile).Remove(siteID, index); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "removed account %d from %q\n", index, siteID)
			return nil
		},
	}

	c.Flags().StringVar(&siteID, "site", "yes24", "site id")
	c.Flags().IntVar(&index, "index", -1, "index from accounts list")
	_ = c.MarkFlagRequired("index")
	return c
}
