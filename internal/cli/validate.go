package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/weftlabs/weft/internal/definition"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validateResult struct {
	Path   string             `json:"path"`
	ID     string             `json:"id,omitempty"`
	Valid  bool               `json:"valid"`
	Errors []definition.Error `json:"errors,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate workflow definition files",
	Long: `Validate workflow definition files structurally: parse errors,
missing or invalid fields, unknown step types and operators, and graph
entries referencing undeclared steps.

With no arguments, every definition file in the configured definitions
directory is validated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			var err error
			paths, err = listDefinitionFiles(appConfig.DefinitionsDir())
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				cmd.Println("No definition files found")
				return nil
			}
		}

		results := make([]validateResult, 0, len(paths))
		invalid := 0
		for _, path := range paths {
			res := validateFile(path)
			if !res.Valid {
				invalid++
			}
			results = append(results, res)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			if err := WriteOutput(os.Stdout, results); err != nil {
				return err
			}
		} else {
			for _, res := range results {
				if res.Valid {
					fmt.Fprintf(os.Stdout, "ok    %s (%s)\n", res.Path, res.ID)
					continue
				}
				fmt.Fprintf(os.Stdout, "fail  %s\n", res.Path)
				for _, e := range res.Errors {
					fmt.Fprintf(os.Stdout, "      %s\n", e.HumanString())
				}
			}
		}

		if invalid > 0 {
			return &ExitError{
				Code:    1,
				Err:     fmt.Errorf("%d of %d definition(s) invalid", invalid, len(results)),
				Printed: true,
			}
		}
		return nil
	},
}

func validateFile(path string) validateResult {
	res := validateResult{Path: path}

	wf, err := definition.Load(path)
	if err != nil {
		res.Errors = definitionErrors(err)
		return res
	}

	wf, err = definition.Validate(wf)
	if err != nil {
		res.Errors = definitionErrors(err)
		return res
	}

	res.ID = wf.ID
	res.Valid = true
	return res
}

// definitionErrors flattens an error into coded entries, falling back
// to a single parse-coded entry for plain errors.
func definitionErrors(err error) []definition.Error {
	var list *definition.ErrorList
	if errors.As(err, &list) {
		return list.Errors
	}
	return []definition.Error{{
		Code:    definition.ErrCodeParse,
		Message: err.Error(),
	}}
}

func listDefinitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read definitions directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml", ".toml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
