package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/pkg/log"
)

const envPrefix = "MOLPIPE"

type globalFlags struct {
	config    string
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{logLevel: "info", logFormat: "console"}
	cmd := &cobra.Command{
		Use:           "molpipe",
		Short:         "Featurize, split, fit and evaluate molecular property models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyConfig(cmd, g.config); err != nil {
				return err
			}
			level, err := log.ParseLevel(g.logLevel)
			if err != nil {
				return err
			}
			format, err := log.ParseFormat(g.logFormat)
			if err != nil {
				return err
			}
			log.Setup(cmd.ErrOrStderr(), format, level)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&g.config, "config", "", "Config file (default: config.yaml in . or $HOME/.config/molpipe)")
	pf.StringVar(&g.logLevel, "log-level", g.logLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", g.logFormat, "Log format (console, json)")

	cmd.AddCommand(
		newFeaturizeCommand(),
		newSplitCommand(),
		newFitCommand(),
		newEvalCommand(),
		newModelCommand(),
	)
	cmd.Example = `  # Featurize a CSV and run every stage with a random forest
  molpipe model --input-files tox.csv --fields smiles,active --field-types string,float \
    --target-fields active --feature-types fingerprints --name tox --out data --model rf_classifier

  # Re-evaluate an existing model on the test bundle
  molpipe eval --saved-model data/tox/rf_classifier.gob.gz --saved-data data/tox/tox-test.gob.gz \
    --task-type classification --compute-aucs --stats-out test-stats.txt`
	return cmd
}

// applyConfig fills flags the user did not set from MOLPIPE_* environment
// variables and then from the config file. Keys are flag names; a section
// named after the subcommand overrides top-level keys.
func applyConfig(cmd *cobra.Command, explicit string) error {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if explicit == "" {
		explicit = os.Getenv(envPrefix + "_CONFIG")
	}
	configureConfigFile(v, explicit)
	if err := readConfigFile(v, explicit != ""); err != nil {
		return err
	}

	var setErr error
	visit := func(f *pflag.Flag) {
		if f.Changed || setErr != nil {
			return
		}
		for _, key := range []string{cmd.Name() + "." + f.Name, f.Name} {
			if !v.IsSet(key) {
				continue
			}
			if err := setFlag(f, v.Get(key)); err != nil {
				setErr = errors.Wrapf(err, "config value for --%s", f.Name)
			}
			return
		}
	}
	cmd.Flags().VisitAll(visit)
	cmd.InheritedFlags().VisitAll(visit)
	return setErr
}

func setFlag(f *pflag.Flag, val any) error {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		var items []string
		switch x := val.(type) {
		case []any:
			for _, it := range x {
				items = append(items, fmt.Sprint(it))
			}
		case []string:
			items = x
		default:
			for _, it := range strings.Split(fmt.Sprint(x), ",") {
				if it = strings.TrimSpace(it); it != "" {
					items = append(items, it)
				}
			}
		}
		return sv.Replace(items)
	}
	s := fmt.Sprintf("%v", val)
	if s == "" {
		return nil
	}
	return f.Value.Set(s)
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "molpipe"))
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && !strict {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}
