package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/weftlabs/weft/internal/integration"
	"github.com/weftlabs/weft/internal/store"
)

var (
	integrationAddProvider string
	integrationAddKind     string
	integrationAddBaseURL  string
	integrationAddAuthType string
	integrationAddAuth     []string
	integrationAddHeaders  []string
)

func init() {
	rootCmd.AddCommand(integrationCmd)

	integrationAddCmd.Flags().StringVar(&integrationAddProvider, "provider", "", "Provider name (required)")
	integrationAddCmd.Flags().StringVar(&integrationAddKind, "kind", string(integration.KindHosted), "Integration kind: rpc or hosted")
	integrationAddCmd.Flags().StringVar(&integrationAddBaseURL, "base-url", "", "Base URL for hosted execute calls")
	integrationAddCmd.Flags().StringVar(&integrationAddAuthType, "auth-type", "", "Auth scheme: bearer, basic or header")
	integrationAddCmd.Flags().StringArrayVar(&integrationAddAuth, "auth", nil, "Auth field as key=value (repeatable)")
	integrationAddCmd.Flags().StringArrayVar(&integrationAddHeaders, "header", nil, "Extra request header as key=value (repeatable)")
	_ = integrationAddCmd.MarkFlagRequired("provider")

	integrationCmd.AddCommand(integrationAddCmd)
	integrationCmd.AddCommand(integrationListCmd)
	integrationCmd.AddCommand(integrationRemoveCmd)
	integrationCmd.AddCommand(integrationToolsCmd)
	integrationCmd.AddCommand(integrationCacheCmd)
}

var integrationCmd = &cobra.Command{
	Use:   "integration",
	Short: "Manage provider integrations and the cached tool catalog",
}

var integrationAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a provider integration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		authFields, err := parseStringPairs(integrationAddAuth)
		if err != nil {
			return err
		}
		headers, err := parseStringPairs(integrationAddHeaders)
		if err != nil {
			return err
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewIntegrationRepository(database)
		integ := &integration.Integration{
			Provider:   integrationAddProvider,
			Kind:       integration.Kind(integrationAddKind),
			BaseURL:    integrationAddBaseURL,
			AuthType:   integration.AuthType(integrationAddAuthType),
			AuthFields: authFields,
			Headers:    headers,
		}
		if err := repo.PutIntegration(context.Background(), integ); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, integ)
		}

		fmt.Fprintf(os.Stdout, "added integration %s (%s)\n", integ.Provider, integ.Kind)
		return nil
	},
}

var integrationListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List provider integrations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewIntegrationRepository(database)
		integrations, err := repo.ListIntegrations(context.Background())
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, integrations)
		}

		if len(integrations) == 0 {
			fmt.Fprintln(os.Stdout, "No integrations configured")
			return nil
		}

		rows := make([][]string, 0, len(integrations))
		for _, integ := range integrations {
			rows = append(rows, []string{
				integ.Provider,
				string(integ.Kind),
				string(integ.AuthType),
				integ.BaseURL,
			})
		}
		return writeTable(os.Stdout, []string{"PROVIDER", "KIND", "AUTH", "BASE URL"}, rows)
	},
}

var integrationRemoveCmd = &cobra.Command{
	Use:     "rm <provider>",
	Aliases: []string{"remove"},
	Short:   "Remove a provider integration",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewIntegrationRepository(database)
		if err := repo.DeleteIntegration(context.Background(), args[0]); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]string{"removed": args[0]})
		}

		fmt.Fprintf(os.Stdout, "removed integration %s\n", args[0])
		return nil
	},
}

var integrationToolsCmd = &cobra.Command{
	Use:   "tools [provider]",
	Short: "List the cached tool catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := ""
		if len(args) == 1 {
			provider = args[0]
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewIntegrationRepository(database)
		tools, err := repo.ListTools(context.Background(), provider)
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, tools)
		}

		if len(tools) == 0 {
			fmt.Fprintln(os.Stdout, "No tools cached")
			return nil
		}

		rows := make([][]string, 0, len(tools))
		for _, tool := range tools {
			rows = append(rows, []string{
				tool.ID,
				tool.Name,
				tool.Description,
			})
		}
		return writeTable(os.Stdout, []string{"ID", "NAME", "DESCRIPTION"}, rows)
	},
}

var integrationCacheCmd = &cobra.Command{
	Use:   "cache <file...>",
	Short: "Load tool metadata files into the cached catalog",
	Long: `Load tool metadata into the cached catalog from JSON files.

Each file holds a single tool object or an array of them, matching the
shape returned by "weft integration tools --json".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewIntegrationRepository(database)

		total := 0
		for _, path := range args {
			tools, err := readToolFile(path)
			if err != nil {
				return err
			}
			for _, tool := range tools {
				if err := repo.PutTool(ctx, tool); err != nil {
					return fmt.Errorf("failed to cache tool from %s: %w", path, err)
				}
			}
			total += len(tools)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]int{"cached": total})
		}

		fmt.Fprintf(os.Stdout, "cached %d tool(s)\n", total)
		return nil
	},
}

// readToolFile decodes one or many CachedTool objects from a JSON file.
func readToolFile(path string) ([]*integration.CachedTool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var many []*integration.CachedTool
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}

	var one integration.CachedTool
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("failed to parse tool metadata in %s: %w", path, err)
	}
	return []*integration.CachedTool{&one}, nil
}

// parseStringPairs parses repeated key=value flags into a string map.
func parseStringPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
