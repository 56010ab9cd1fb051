package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change stored settings",
	Long: `Inspect and change settings stored in the database. Stored values override
environment variables, which override built-in defaults.

Examples:
  jobops settings get pipelineTopN
  jobops settings set linkedinEnabled false
  jobops settings unset searchTerms`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show the resolved value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), db, cfg, logger, false)
		if err != nil {
			return err
		}
		desc, err := a.settings.Describe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		override := "(none)"
		if desc.Override != nil {
			override = *desc.Override
		}
		fmt.Printf("%s\n  value:    %s\n  override: %s\n  default:  %s\n", desc.Key, desc.Value, override, desc.Default)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store an override",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), db, cfg, logger, false)
		if err != nil {
			return err
		}
		stored, err := a.settings.Set(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], stored)
		return nil
	},
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove an override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), db, cfg, logger, false)
		if err != nil {
			return err
		}
		if err := a.settings.Clear(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s cleared\n", args[0])
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsUnsetCmd)
}
