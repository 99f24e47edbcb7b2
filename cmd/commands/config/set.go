package config

import (
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/linops/internal/config"
	"nathanbeddoewebdev/linops/internal/util"

	"github.com/spf13/cobra"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a persistent configuration value.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  linops config set default-datacenter newark\n" +
			"  linops config set poll-interval 3s",
		Args:         cobra.ExactArgs(2),
		RunE:         runSet,
		SilenceUsage: true,
	}

	// Values such as "-1m" are arguments, not shorthand flags.
	cmd.Flags().SetInterspersed(false)

	return cmd
}

// UnsetCommand returns the "config unset" command.
func UnsetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Clear a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := lookup(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			spec.Set(cfg, "")
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", spec.Name)
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}

// validators maps key names to optional pre-save validation functions.
// Keys not present in this map have no extra validation.
var validators = map[string]func(value string) error{
	"poll-interval": validatePollInterval,
	"wait-timeout":  validateDuration,
}

func lookup(name string) (*config.KeySpec, error) {
	spec := config.Lookup(util.NormalizeKey(name))
	if spec == nil {
		return nil, fmt.Errorf("unknown configuration key %q (valid: %s)", name, strings.Join(config.KeyNames(), ", "))
	}
	return spec, nil
}

func runSet(cmd *cobra.Command, args []string) error {
	spec, err := lookup(args[0])
	if err != nil {
		return err
	}

	value := strings.TrimSpace(args[1])
	if value == "" {
		return fmt.Errorf("value for %s cannot be empty; use \"linops config unset %s\"", spec.Name, spec.Name)
	}
	if validate, ok := validators[spec.Name]; ok {
		if err := validate(value); err != nil {
			return fmt.Errorf("invalid %s: %w", spec.Name, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	spec.Set(cfg, value)
	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, value)
	return nil
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", value)
	}
	return nil
}

func validatePollInterval(value string) error {
	if err := validateDuration(value); err != nil {
		return err
	}
	if d, _ := time.ParseDuration(value); d == 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}
