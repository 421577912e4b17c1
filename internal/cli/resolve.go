package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/internal/resolver"
	"github.com/weftlabs/weft/internal/store"
	"github.com/weftlabs/weft/internal/workflow"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
}

type resolveNode struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

type resolveResult struct {
	ID    string        `json:"id"`
	Steps []string      `json:"steps"`
	Nodes []resolveNode `json:"nodes"`
	Retry any           `json:"retry,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <file|id>",
	Short: "Resolve a definition into an executable workflow",
	Long: `Resolve a workflow definition against the configured store: compile
its schemas, bind step declarations, and assemble the control-flow
graph. The argument is a definition file path, or the id of a stored
definition. Execute-time capabilities (agents, tools) are looked up
lazily and are not invoked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		def, err := loadOrFetchDefinition(ctx, database, args[0])
		if err != nil {
			return err
		}

		agentRepo := store.NewAgentRepository(database)
		integRepo := store.NewIntegrationRepository(database)

		r := resolver.New(resolver.Options{
			Agents:       []registry.AgentSource{agentRepo.Agents(nil)},
			Tools:        registry.NewToolRegistry(),
			Definitions:  store.NewDefinitionRepository(database),
			Integrations: integRepo,
		})

		w, err := r.Resolve(ctx, def)
		if err != nil {
			return err
		}

		result := buildResolveResult(w)

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, result)
		}

		fmt.Fprintf(os.Stdout, "resolved %s: %d step(s), %d graph node(s)\n",
			result.ID, len(result.Steps), len(result.Nodes))

		rows := make([][]string, 0, len(result.Nodes))
		for i, n := range result.Nodes {
			rows = append(rows, []string{fmt.Sprintf("%d", i), n.Kind, n.Detail})
		}
		return writeTable(os.Stdout, []string{"#", "NODE", "DETAIL"}, rows)
	},
}

// loadOrFetchDefinition reads the argument as a definition file when it
// exists on disk, otherwise as a stored definition id.
func loadOrFetchDefinition(ctx context.Context, database *store.DB, arg string) (*definition.Workflow, error) {
	if _, statErr := os.Stat(arg); statErr == nil {
		wf, err := definition.Load(arg)
		if err != nil {
			return nil, err
		}
		return definition.Validate(wf)
	}

	repo := store.NewDefinitionRepository(database)
	rec, err := repo.Get(ctx, arg)
	if err != nil {
		return nil, err
	}
	return rec.Document, nil
}

func buildResolveResult(w *workflow.Workflow) resolveResult {
	result := resolveResult{ID: w.ID()}

	for id := range w.Steps() {
		result.Steps = append(result.Steps, id)
	}
	sort.Strings(result.Steps)

	for _, node := range w.Nodes() {
		result.Nodes = append(result.Nodes, resolveNode{
			Kind:   string(node.Kind),
			Detail: nodeDetail(node),
		})
	}

	if w.Retry() != nil {
		result.Retry = w.Retry()
	}

	return result
}

func nodeDetail(node workflow.GraphNode) string {
	switch node.Kind {
	case workflow.NodeStep:
		if len(node.Steps) == 1 {
			return node.Steps[0].ID
		}
	case workflow.NodeParallel:
		return fmt.Sprintf("%d steps", len(node.Steps))
	case workflow.NodeBranch:
		return fmt.Sprintf("%d branches", len(node.Branches))
	case workflow.NodeLoop:
		if len(node.Steps) == 1 {
			return fmt.Sprintf("%s (%s)", node.Steps[0].ID, node.Loop)
		}
	case workflow.NodeForeach:
		if len(node.Steps) == 1 {
			return fmt.Sprintf("%s (concurrency %d)", node.Steps[0].ID, node.Concurrency)
		}
	case workflow.NodeSleep:
		return node.Duration.String()
	case workflow.NodeSleepUntil:
		return node.Until.UTC().Format(time.RFC3339)
	}
	return ""
}
