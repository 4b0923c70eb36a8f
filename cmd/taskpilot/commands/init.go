package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create configuration file",
	Long: `Initialize a new taskpilot configuration file.

By default, creates taskpilot.yaml in the current directory.
Use --global to create a global config at ~/.config/taskpilot/config.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("global", false, "Create global config instead of project config")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing config without prompting")
	initCmd.Flags().String("backend", config.DefaultStoreBackend, "Store backend (file, sqlite, postgres)")
	initCmd.Flags().String("provider", config.DefaultOracleProvider, "Oracle provider (anthropic, gemini, claude-cli, codex-cli, none)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	global, _ := cmd.Flags().GetBool("global")
	force, _ := cmd.Flags().GetBool("force")
	backend, _ := cmd.Flags().GetString("backend")
	provider, _ := cmd.Flags().GetString("provider")
	out := cmd.OutOrStdout()

	var configPath, configType string
	if global {
		configPath = config.GlobalConfigPath()
		configType = "global"
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		configPath = filepath.Join(cwd, "taskpilot.yaml")
		configType = "project"
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(out, "%sConfig already exists:%s %s\n", colorYellow, colorReset, configPath)
		fmt.Fprint(out, "Overwrite? [y/N]: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := config.Default()
	cfg.Store.Backend = strings.ToLower(backend)
	cfg.Oracle.Provider = strings.ToLower(provider)
	if cfg.Store.Backend == config.BackendPostgres && cfg.Store.DSN == "" {
		cfg.Store.DSN = "postgres://localhost/taskpilot?sslmode=disable"
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := config.Write(configPath, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(out, "\n%s%sCreated %s config:%s %s\n\n", colorBold, colorGreen, configType, colorReset, configPath)
	fmt.Fprintf(out, "%sNext steps:%s\n", colorCyan, colorReset)
	switch cfg.Oracle.Provider {
	case config.ProviderAnthropic:
		fmt.Fprintln(out, "  1. Export ANTHROPIC_API_KEY (or set oracle.api_key)")
	case config.ProviderGemini:
		fmt.Fprintln(out, "  1. Export GEMINI_API_KEY (or set oracle.api_key)")
	default:
		fmt.Fprintln(out, "  1. Review the oracle section of the config")
	}
	fmt.Fprintln(out, "  2. Optionally export GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_ENGINE_ID")
	fmt.Fprintln(out, "  3. Run 'taskpilot doctor' to verify")
	fmt.Fprintln(out, "  4. Add a task with 'taskpilot task add \"Write report\"'")
	fmt.Fprintln(out)
	return nil
}
