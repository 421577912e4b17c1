package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/store"
)

func init() {
	rootCmd.AddCommand(storeCmd)

	storeCmd.AddCommand(storePutCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeShowCmd)
	storeCmd.AddCommand(storeRemoveCmd)
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the workflow definition store",
}

type storePutResult struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

var storePutCmd = &cobra.Command{
	Use:   "put <file...>",
	Short: "Validate and store definition files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewDefinitionRepository(database)

		results := make([]storePutResult, 0, len(args))
		for _, path := range args {
			wf, err := definition.Load(path)
			if err != nil {
				return err
			}
			wf, err = definition.Validate(wf)
			if err != nil {
				return err
			}
			if err := repo.Put(ctx, wf); err != nil {
				return err
			}
			results = append(results, storePutResult{Path: path, ID: wf.ID})
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, results)
		}

		for _, res := range results {
			fmt.Fprintf(os.Stdout, "stored %s (%s)\n", res.ID, res.Path)
		}
		return nil
	},
}

type storeListEntry struct {
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Steps       int       `json:"steps"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var storeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored definitions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewDefinitionRepository(database)
		records, err := repo.List(context.Background())
		if err != nil {
			return err
		}

		entries := make([]storeListEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, storeListEntry{
				ID:          rec.ID,
				Description: rec.Description,
				Steps:       len(rec.Document.Steps),
				UpdatedAt:   rec.UpdatedAt,
			})
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, entries)
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stdout, "No definitions stored")
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.ID,
				fmt.Sprintf("%d", e.Steps),
				e.UpdatedAt.UTC().Format(time.RFC3339),
				e.Description,
			})
		}
		return writeTable(os.Stdout, []string{"ID", "STEPS", "UPDATED", "DESCRIPTION"}, rows)
	},
}

var storeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored definition document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewDefinitionRepository(database)
		rec, err := repo.Get(context.Background(), args[0])
		if err != nil {
			return err
		}

		// The stored document is JSON either way.
		return writeJSON(os.Stdout, rec.Document)
	},
}

var storeRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a stored definition",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		repo := store.NewDefinitionRepository(database)
		if err := repo.Delete(context.Background(), args[0]); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]string{"removed": args[0]})
		}

		fmt.Fprintf(os.Stdout, "removed %s\n", args[0])
		return nil
	},
}
