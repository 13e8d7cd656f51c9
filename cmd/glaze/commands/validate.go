package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/glazeui/glaze/pkg/policy"
	"github.com/glazeui/glaze/pkg/theme"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration, themes, and policies",
		Long: `Validate checks the engine config file (--config), resolves every
theme in the themes directory across the modes it defines, and compiles
any policy files given with --policy. Problems are reported per item;
the command fails if anything is invalid.`,
		RunE: validateAll,
	}
	return cmd
}

// validationIssue is one problem found during validation.
type validationIssue struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Error  string `json:"error"`
}

func validateAll(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var issues []validationIssue
	checked := 0

	// Engine config.
	checked++
	if _, err := loadEngineConfig(); err != nil {
		issues = append(issues, validationIssue{
			Kind:   "config",
			Target: configPath,
			Error:  err.Error(),
		})
	}

	// Theme files: every theme must load, and every mode it declares
	// must resolve.
	issues = append(issues, validateThemes(ctx, &checked)...)

	// Policy files must parse and compile.
	issues = append(issues, validatePolicies(ctx, &checked)...)

	if jsonOutput {
		out := struct {
			Checked int               `json:"checked"`
			Issues  []validationIssue `json:"issues,omitempty"`
			Valid   bool              `json:"valid"`
		}{Checked: checked, Issues: issues, Valid: len(issues) == 0}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		for _, issue := range issues {
			fmt.Printf("INVALID %s %s: %s\n", issue.Kind, issue.Target, issue.Error)
		}
		fmt.Printf("%d checks, %d problems\n", checked, len(issues))
	}

	if len(issues) > 0 {
		return fmt.Errorf("validation failed with %d problem(s)", len(issues))
	}
	return nil
}

func validateThemes(ctx context.Context, checked *int) []validationIssue {
	var issues []validationIssue

	resolver := theme.NewDirResolver(themesDir)
	names, err := resolver.ListThemes()
	if err != nil {
		*checked++
		return append(issues, validationIssue{
			Kind:   "themes",
			Target: themesDir,
			Error:  err.Error(),
		})
	}

	for _, name := range names {
		*checked++
		tf, err := resolver.Load(name)
		if err != nil {
			issues = append(issues, validationIssue{
				Kind:   "theme",
				Target: name,
				Error:  err.Error(),
			})
			continue
		}
		for mode := range tf.Modes {
			desc := theme.Descriptor{ThemeID: name, ColorMode: mode}
			if _, err := resolver.ResolveVariables(ctx, desc); err != nil {
				issues = append(issues, validationIssue{
					Kind:   "theme",
					Target: desc.Key(),
					Error:  err.Error(),
				})
			}
		}
	}
	return issues
}

func validatePolicies(ctx context.Context, checked *int) []validationIssue {
	if len(policyPaths) == 0 {
		return nil
	}

	var issues []validationIssue
	for _, path := range policyPaths {
		*checked++
		eng, err := policy.NewEngine(zerolog.Nop())
		if err != nil {
			issues = append(issues, validationIssue{
				Kind:   "policy",
				Target: path,
				Error:  err.Error(),
			})
			continue
		}
		if err := eng.LoadPolicies(ctx, []string{path}); err != nil {
			issues = append(issues, validationIssue{
				Kind:   "policy",
				Target: path,
				Error:  err.Error(),
			})
		}
	}
	return issues
}
