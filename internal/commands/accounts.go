package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/notify"
	"github.com/j-veylop/antigravity-account-manager/internal/store"
)

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the pool of editor accounts",
	Long: `Manage the pool of Antigravity editor accounts.

Each account stores a Google OAuth refresh token, per-model usage quotas,
and an optional device-identity profile. One account is "current" at any
moment; switching closes the editor, injects the account's identity, and
restarts it.`,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new account",
	Long: `Add a new account from an email address and OAuth refresh token.

Examples:
  agm accounts add --email me@example.com --refresh-token 1//0abc...`,
	RunE: runAccountsAdd,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured accounts",
	RunE:  runAccountsList,
}

var accountsCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the currently active account",
	RunE:  runAccountsCurrent,
}

var accountsSwitchCmd = &cobra.Command{
	Use:   "switch [id|email]",
	Short: "Make an account current and restart the editor on it",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsSwitch,
}

var accountsRemoveCmd = &cobra.Command{
	Use:     "remove [id|email]...",
	Aliases: []string{"delete"},
	Short:   "Remove one or more accounts",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAccountsRemove,
}

var accountsReorderCmd = &cobra.Command{
	Use:   "reorder [id]...",
	Short: "Reorder accounts in the index",
	Long: `Reorder accounts. Listed ids come first in the given order; accounts
not listed keep their relative order after them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAccountsReorder,
}

var accountsExportCmd = &cobra.Command{
	Use:   "export [id|email]...",
	Short: "Export account refresh tokens as JSON",
	Long: `Export accounts as a JSON document of email and refresh-token pairs.
With no arguments every account is exported. The output contains live
credentials; handle it accordingly.`,
	RunE: runAccountsExport,
}

var accountsRefreshCmd = &cobra.Command{
	Use:   "refresh [id|email]",
	Short: "Refresh usage quotas from the upstream API",
	Long: `Refresh usage quotas. With an argument only that account is refreshed;
without one every account is refreshed, five at a time, skipping accounts
the upstream has marked forbidden.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAccountsRefresh,
}

var accountsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the account directory and print change events",
	RunE:  runAccountsWatch,
}

var (
	addEmailArg        string
	addNameArg         string
	addRefreshTokenArg string
	exportOutputArg    string
)

func init() {
	rootCmd.AddCommand(accountsCmd)

	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsCurrentCmd)
	accountsCmd.AddCommand(accountsSwitchCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	accountsCmd.AddCommand(accountsReorderCmd)
	accountsCmd.AddCommand(accountsExportCmd)
	accountsCmd.AddCommand(accountsRefreshCmd)
	accountsCmd.AddCommand(accountsWatchCmd)

	accountsAddCmd.Flags().StringVar(&addEmailArg, "email", "", "Account email address")
	accountsAddCmd.Flags().StringVar(&addNameArg, "name", "", "Display name")
	accountsAddCmd.Flags().StringVar(&addRefreshTokenArg, "refresh-token", "", "OAuth refresh token")
	_ = accountsAddCmd.MarkFlagRequired("email")
	_ = accountsAddCmd.MarkFlagRequired("refresh-token")

	accountsExportCmd.Flags().StringVarP(&exportOutputArg, "output", "o", "", "Write to file instead of stdout")
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	token := models.NewTokenData("", addRefreshTokenArg, 0, addEmailArg, "", "")
	acct, err := a.store.Upsert(addEmailArg, addNameArg, token)
	if err != nil {
		return fmt.Errorf("failed to add account: %w", err)
	}

	fmt.Printf("Added account %s (%s)\n", acct.Email, acct.ID)
	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	accounts, err := a.store.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts configured.")
		fmt.Println()
		fmt.Println("To add an account, run:")
		fmt.Println("  agm accounts add --email you@example.com --refresh-token ...")
		return nil
	}

	currentID, err := a.store.CurrentID()
	if err != nil {
		return err
	}

	fmt.Printf("Configured accounts (%d):\n\n", len(accounts))
	for i, acct := range accounts {
		marker := " "
		if acct.ID == currentID {
			marker = "*"
		}
		fmt.Printf("%s %d. %s\n", marker, i+1, acct.Email)
		fmt.Printf("     ID: %s\n", acct.ID)
		if acct.Name != "" {
			fmt.Printf("     Name: %s\n", acct.Name)
		}
		fmt.Printf("     Status: %s\n", accountStatus(acct))
		if acct.Quota != nil {
			if acct.Quota.SubscriptionTier != "" {
				fmt.Printf("     Tier: %s\n", acct.Quota.SubscriptionTier)
			}
			for _, mq := range acct.Quota.Models {
				fmt.Printf("     %-28s %3d%%\n", mq.Name, mq.Percentage)
			}
		}
		if protected := acct.ProtectedModels.Items(); len(protected) > 0 {
			fmt.Printf("     Protected: %v\n", protected)
		}
		if acct.LastUsed > 0 {
			fmt.Printf("     Last used: %s\n", time.Unix(acct.LastUsed, 0).Format(time.RFC3339))
		}
		fmt.Println()
	}
	return nil
}

func accountStatus(acct *models.Account) string {
	switch {
	case acct.Disabled:
		return red("DISABLED: " + acct.DisabledReason)
	case acct.Quota != nil && acct.Quota.IsForbidden:
		return red("FORBIDDEN: " + acct.Quota.ForbiddenReason)
	case acct.ProxyDisabled:
		return yellow("PROXY-DISABLED: " + acct.ProxyDisabledReason)
	default:
		return green("OK")
	}
}

func runAccountsCurrent(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	acct, err := a.store.Current()
	if err != nil {
		return err
	}
	if acct == nil {
		fmt.Println("No account is current.")
		return nil
	}
	fmt.Printf("%s (%s)\n", acct.Email, acct.ID)
	return nil
}

func runAccountsSwitch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveAccountID(args[0])
	if err != nil {
		return err
	}

	acct, err := a.switcher().Switch(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("switch failed: %w", err)
	}
	fmt.Printf("Switched to %s\n", acct.Email)
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := a.resolveAccountID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	if len(ids) == 1 {
		if err := a.store.Delete(ids[0]); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		fmt.Printf("Removed account %s\n", args[0])
		return nil
	}

	removed, err := a.store.DeleteMany(ids)
	if err != nil {
		return fmt.Errorf("failed to remove accounts: %w", err)
	}
	fmt.Printf("Removed %d account(s)\n", removed)
	return nil
}

func runAccountsReorder(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := a.resolveAccountID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := a.store.Reorder(ids); err != nil {
		return fmt.Errorf("failed to reorder accounts: %w", err)
	}
	fmt.Println("Reordered.")
	return nil
}

func runAccountsExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var ids []string
	if len(args) == 0 {
		summaries, err := a.store.ListSummaries()
		if err != nil {
			return err
		}
		for _, sum := range summaries {
			ids = append(ids, sum.ID)
		}
	} else {
		for _, arg := range args {
			id, err := a.resolveAccountID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
	}

	export, err := a.store.ExportByIDs(ids)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if exportOutputArg != "" {
		if err := os.WriteFile(exportOutputArg, out, 0o600); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Printf("Exported %d account(s) to %s\n", len(export.Accounts), exportOutputArg)
		return nil
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runAccountsRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	engine := a.engine()

	if len(args) == 1 {
		id, err := a.resolveAccountID(args[0])
		if err != nil {
			return err
		}
		acct, err := engine.FetchWithRetry(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		fmt.Printf("Refreshed %s\n", acct.Email)
		if acct.Quota != nil {
			for _, mq := range acct.Quota.Models {
				fmt.Printf("  %-28s %3d%%\n", mq.Name, mq.Percentage)
			}
		}
		return nil
	}

	stats, err := engine.RefreshAll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Refreshed %d/%d account(s), %d skipped, %d failed\n",
		stats.Success, stats.Total, stats.Skipped, stats.Failed)
	for _, detail := range stats.Details {
		fmt.Printf("  %s\n", detail)
	}
	return nil
}

func runAccountsWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	notifier := notify.NewChannelNotifier(16)
	watcher, err := store.NewWatcher(a.store, notifier)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", a.store.DataDir())
	for {
		select {
		case ev := <-notifier.Events():
			switch ev.Kind {
			case notify.EventAccountReloaded:
				fmt.Printf("%s account reloaded: %s\n", time.Now().Format(time.TimeOnly), ev.AccountID)
			case notify.EventAccountDeleted:
				fmt.Printf("%s account deleted: %s\n", time.Now().Format(time.TimeOnly), ev.AccountID)
			case notify.EventAccountsRefreshed:
				fmt.Printf("%s account index changed\n", time.Now().Format(time.TimeOnly))
			}
		case <-sigChan:
			return nil
		}
	}
}
