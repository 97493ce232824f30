package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// editorCmd represents the editor command
var editorCmd = &cobra.Command{
	Use:   "editor",
	Short: "Control the editor process",
	Long: `Inspect and control the Antigravity editor process: report whether it
is running, close it gracefully, start it, or restart it.`,
}

var editorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the editor is running",
	RunE:  runEditorStatus,
}

var editorCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the editor, gracefully then forcefully",
	RunE:  runEditorClose,
}

var editorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the editor",
	RunE:  runEditorStart,
}

var editorRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Close and start the editor",
	RunE:  runEditorRestart,
}

func init() {
	rootCmd.AddCommand(editorCmd)

	editorCmd.AddCommand(editorStatusCmd)
	editorCmd.AddCommand(editorCloseCmd)
	editorCmd.AddCommand(editorStartCmd)
	editorCmd.AddCommand(editorRestartCmd)
}

func runEditorStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	running, err := a.coordinator.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to enumerate processes: %w", err)
	}
	if !running {
		fmt.Println("Editor is not running.")
		return nil
	}

	fmt.Println("Editor is running.")
	if path, ok := a.coordinator.PathFromRunningProcess(); ok {
		fmt.Printf("  Executable: %s\n", path)
	}
	if dir, ok := a.coordinator.UserDataDir(); ok {
		fmt.Printf("  User data: %s\n", dir)
	}
	return nil
}

func runEditorClose(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.coordinator.Close(int(a.cfg.EditorCloseTimeout.Seconds())); err != nil {
		return err
	}
	fmt.Println("Editor closed.")
	return nil
}

func runEditorStart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.coordinator.Start(); err != nil {
		return err
	}
	fmt.Println("Editor started.")
	return nil
}

func runEditorRestart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.coordinator.Close(int(a.cfg.EditorCloseTimeout.Seconds())); err != nil {
		return err
	}
	if err := a.coordinator.Start(); err != nil {
		return err
	}
	fmt.Println("Editor restarted.")
	return nil
}
