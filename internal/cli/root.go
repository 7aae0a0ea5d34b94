package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/product_catalog/internal/client"
	"github.com/Skotchmaster/product_catalog/pkg/logging"
)

type app struct {
	configPath string
	serverURL  string
	token      string
	logLevel   string

	cfg   *Config
	store *client.Store
}

// setup merges the config file with flags; flags win.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("server") {
		cfg.ServerURL = a.serverURL
	}
	if cmd.Flags().Changed("token") {
		cfg.Token = a.token
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.cfg = cfg
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), a.logLevel)
	a.store = client.NewStore(client.NewAPIClient(cfg.ServerURL, cfg.Token), logger)
	return nil
}

// NewRootCmd builds the catalogctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage the product catalog",
		Long:          "catalogctl lists, creates, updates, deletes and searches products of a catalog server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", DefaultConfigPath, "path to the config file")
	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "catalog server URL (overrides server_url)")
	root.PersistentFlags().StringVar(&a.token, "token", "", "bearer token for write operations (overrides token)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "error", "client log level")

	root.AddCommand(
		a.listCmd(),
		a.createCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.searchCmd(),
		tokenCmd(),
	)
	return root
}

// Execute runs the CLI
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
