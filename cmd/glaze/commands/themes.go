package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/glazeui/glaze/pkg/theme"
)

func newThemesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List theme definitions",
		Long: `Themes lists every theme resolvable from the themes directory along
with the color modes and contexts each theme defines.`,
		RunE: listThemes,
	}
	return cmd
}

// themeInfo is the per-theme listing entry.
type themeInfo struct {
	Name     string   `json:"name"`
	Modes    []string `json:"modes"`
	Contexts []string `json:"contexts,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func listThemes(cmd *cobra.Command, _ []string) error {
	resolver := theme.NewDirResolver(themesDir)

	names, err := resolver.ListThemes()
	if err != nil {
		return err
	}

	infos := make([]themeInfo, 0, len(names))
	for _, name := range names {
		info := themeInfo{Name: name}
		tf, err := resolver.Load(name)
		if err != nil {
			info.Error = err.Error()
			infos = append(infos, info)
			continue
		}

		ctxSeen := map[string]struct{}{}
		for mode, def := range tf.Modes {
			info.Modes = append(info.Modes, string(mode))
			for ctxName := range def.Contexts {
				ctxSeen[ctxName] = struct{}{}
			}
		}
		sort.Strings(info.Modes)
		for ctxName := range ctxSeen {
			info.Contexts = append(info.Contexts, ctxName)
		}
		sort.Strings(info.Contexts)
		infos = append(infos, info)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(infos) == 0 {
		fmt.Printf("No themes found in %s\n", resolver.Dir())
		return nil
	}

	fmt.Printf("Themes in %s:\n", resolver.Dir())
	for _, info := range infos {
		if info.Error != "" {
			fmt.Printf("  %-20s (invalid: %s)\n", info.Name, info.Error)
			continue
		}
		line := fmt.Sprintf("  %-20s modes: %v", info.Name, info.Modes)
		if len(info.Contexts) > 0 {
			line += fmt.Sprintf("  contexts: %v", info.Contexts)
		}
		fmt.Println(line)
	}
	return nil
}
