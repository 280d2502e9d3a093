package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bison808/civix"
	"github.com/bison808/civix/internal/config"
	"github.com/bison808/civix/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	outputFormat string
	offline      bool

	v      = viper.New()
	cfg    *config.Config
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "civix",
	Short: "Resolve ZIP codes to political districts",
	Long: `civix maps US ZIP codes to county, congressional, state senate and
assembly districts, and tells incorporated cities from unincorporated areas.
California is covered by a curated table; other lookups go to a geocoder.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./civix.yaml or $HOME/.civix/config.yaml)")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	flags.BoolVar(&offline, "offline", false, "skip the geocoder and persistent store")
	flags.String("data-dir", "", "directory with data file overrides")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
}

// newResolver builds a resolver from the loaded configuration. The returned
// closer must be called when done.
func newResolver(wrap func(civix.Geocoder) civix.Geocoder) (*civix.Resolver, io.Closer, error) {
	c := *cfg
	if offline {
		c.Geocoder.Providers = nil
		c.Store.Path = ""
	}
	opts, closer, err := c.ResolverOptions(logger, wrap)
	if err != nil {
		return nil, nil, err
	}
	r, err := civix.NewResolver(opts...)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return r, closer, nil
}

func printJSON(w io.Writer, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func wantJSON(cmd *cobra.Command) bool {
	switch outputFormat {
	case "json":
		return true
	case "table", "":
		return false
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "unknown output format %q, using table\n", outputFormat)
	return false
}
