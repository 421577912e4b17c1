package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/weftlabs/weft/internal/store"
)

var (
	agentAddName         string
	agentAddInstructions string
	agentAddModel        string
	agentAddMeta         []string
)

func init() {
	rootCmd.AddCommand(agentCmd)

	agentAddCmd.Flags().StringVar(&agentAddName, "name", "", "Agent name (required)")
	agentAddCmd.Flags().StringVar(&agentAddInstructions, "instructions", "", "System instructions for the agent")
	agentAddCmd.Flags().StringVar(&agentAddModel, "model", "", "Model identifier")
	agentAddCmd.Flags().StringArrayVar(&agentAddMeta, "meta", nil, "Metadata entry as key=value (repeatable)")
	_ = agentAddCmd.MarkFlagRequired("name")

	agentCmd.AddCommand(agentAddCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentRemoveCmd)
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage stored agent profiles",
}

var agentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an agent profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		meta, err := parseKeyValues(agentAddMeta)
		if err != nil {
			return err
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewAgentRepository(database)
		rec := &store.AgentRecord{
			Name:         agentAddName,
			Instructions: agentAddInstructions,
			Model:        agentAddModel,
			Metadata:     meta,
		}
		if err := repo.Create(context.Background(), rec); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, rec)
		}

		fmt.Fprintf(os.Stdout, "added agent %s (%s)\n", rec.Name, rec.ID)
		return nil
	},
}

var agentListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List stored agent profiles",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewAgentRepository(database)
		records, err := repo.List(context.Background())
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, records)
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stdout, "No agents stored")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.ID,
				rec.Name,
				rec.Model,
				rec.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		return writeTable(os.Stdout, []string{"ID", "NAME", "MODEL", "UPDATED"}, rows)
	},
}

var agentRemoveCmd = &cobra.Command{
	Use:     "rm <id-or-name>",
	Aliases: []string{"remove"},
	Short:   "Remove a stored agent profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewAgentRepository(database)
		rec, err := repo.Get(ctx, args[0])
		if errors.Is(err, store.ErrAgentNotFound) {
			rec, err = repo.GetByName(ctx, args[0])
		}
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, rec.ID); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]string{"removed": rec.ID})
		}

		fmt.Fprintf(os.Stdout, "removed agent %s (%s)\n", rec.Name, rec.ID)
		return nil
	},
}

// parseKeyValues parses repeated key=value flags into a map.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
