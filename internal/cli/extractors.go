package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var extractorsCmd = &cobra.Command{
	Use:   "extractors",
	Short: "List registered extractors and the sources they provide",
	Args:  cobra.NoArgs,
	RunE:  runExtractors,
}

func runExtractors(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, db, cfg, logger, false)
	if err != nil {
		return err
	}
	reg, err := a.registry.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("load extractors: %w", err)
	}
	snap, err := a.settings.Snapshot(ctx)
	if err != nil {
		return err
	}

	manifests := reg.Manifests()
	if len(manifests) == 0 {
		fmt.Printf("No extractors found in %s\n", cfg.ExtractorsDir)
		return nil
	}

	fmt.Printf("%-16s %-24s %-32s %s\n", "ID", "NAME", "SOURCES", "MISSING ENV")
	fmt.Println(strings.Repeat("-", 90))
	for _, m := range manifests {
		sources := make([]string, 0, len(m.ProvidesSources))
		for _, s := range m.ProvidesSources {
			if !snap.SourceEnabled(s) {
				s += " (off)"
			}
			sources = append(sources, s)
		}
		missing := strings.Join(m.MissingEnvVars(os.LookupEnv), ",")
		fmt.Printf("%-16s %-24s %-32s %s\n", m.ID, m.DisplayName, strings.Join(sources, ","), missing)
	}
	return nil
}
