package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/antigravity-account-manager/internal/store"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage per-account device identity profiles",
	Long: `Manage device identity profiles. Each account can carry its own machine
fingerprint; binding, restoring, and applying profiles rewrites the
editor's storage.json identity file.`,
}

var profileBindCmd = &cobra.Command{
	Use:   "bind [id|email]",
	Short: "Bind a device profile to an account",
	Long: `Bind a device profile. Mode "capture" adopts the machine's current
identity; mode "generate" fabricates a new one, preserving the current
identity as the baseline version.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileBind,
}

var profileApplyCmd = &cobra.Command{
	Use:   "apply [id|email]",
	Short: "Write an account's bound profile into storage.json",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileApply,
}

var profileRestoreCmd = &cobra.Command{
	Use:   "restore [id|email] [version-id]",
	Short: "Restore a historical profile version",
	Long: `Restore a version from the account's device history. The version id may
be a history entry id, "baseline" for the pre-modification identity, or
"current" to re-activate the already-current version.`,
	Args: cobra.ExactArgs(2),
	RunE: runProfileRestore,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete [id|email] [version-id]",
	Short: "Delete a historical profile version",
	Args:  cobra.ExactArgs(2),
	RunE:  runProfileDelete,
}

var profileListCmd = &cobra.Command{
	Use:   "list [id|email]",
	Short: "List an account's profile versions",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileList,
}

var bindModeArg string

func init() {
	rootCmd.AddCommand(profileCmd)

	profileCmd.AddCommand(profileBindCmd)
	profileCmd.AddCommand(profileApplyCmd)
	profileCmd.AddCommand(profileRestoreCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileListCmd)

	profileBindCmd.Flags().StringVar(&bindModeArg, "mode", store.BindModeGenerate, `Bind mode: "capture" or "generate"`)
}

func runProfileBind(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveAccountID(args[0])
	if err != nil {
		return err
	}

	acct, err := a.store.BindDeviceProfile(id, bindModeArg, a.devices)
	if err != nil {
		return fmt.Errorf("failed to bind profile: %w", err)
	}

	// Mirror the bind into the editor's identity file right away.
	if err := a.devices.ApplyProfile(*acct.DeviceProfile); err != nil {
		return fmt.Errorf("profile bound but not applied: %w", err)
	}
	fmt.Printf("Bound %s profile to %s\n", bindModeArg, acct.Email)
	return nil
}

func runProfileApply(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveAccountID(args[0])
	if err != nil {
		return err
	}
	if err := a.store.ApplyDeviceProfile(id, a.devices); err != nil {
		return fmt.Errorf("failed to apply profile: %w", err)
	}
	fmt.Println("Profile applied.")
	return nil
}

func runProfileRestore(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveAccountID(args[0])
	if err != nil {
		return err
	}
	acct, err := a.store.RestoreDeviceVersion(id, args[1])
	if err != nil {
		return fmt.Errorf("failed to restore version: %w", err)
	}
	if err := a.devices.ApplyProfile(*acct.DeviceProfile); err != nil {
		return fmt.Errorf("version restored but not applied: %w", err)
	}
	fmt.Printf("Restored version %s for %s\n", args[1], acct.Email)
	return nil
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveAccountID(args[0])
	if err != nil {
		return err
	}
	if err := a.store.DeleteDeviceVersion(id, args[1]); err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	fmt.Printf("Deleted version %s\n", args[1])
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveAccountID(args[0])
	if err != nil {
		return err
	}
	versions, err := a.store.ListDeviceVersions(id)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Println("No profile versions.")
		return nil
	}

	for _, v := range versions {
		marker := " "
		if v.IsCurrent {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %s\n", marker, v.ID, v.Label,
			time.Unix(v.CreatedAt, 0).Format(time.RFC3339))
	}
	return nil
}
