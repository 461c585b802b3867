package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCmd создаёт команду validate: схема, ссылки и циклы
// проверяются без подключения к БД.
func NewValidateCmd(g *Globals) *cobra.Command {
	var entrypoint string

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := g.Output()

			wf, err := loadWorkflow(args[0], entrypoint)
			if err != nil {
				return err
			}

			headers := []string{"TEMPLATE", "KIND", "INPUTS"}
			rows := make([][]string, len(wf.Templates))
			for i, t := range wf.Templates {
				rows[i] = []string{t.Name, string(t.Kind()), fmt.Sprint(len(t.Inputs))}
			}
			out.Print(headers, rows, wf)
			out.Success(fmt.Sprintf("%s is valid: %d templates, entrypoint %s", args[0], len(wf.Templates), wf.Entrypoint))
			return nil
		},
	}

	cmd.Flags().StringVar(&entrypoint, "entrypoint", "", "Override the workflow entrypoint")

	return cmd
}

// NewPlanCmd создаёт команду plan: workflow проходит через Orchestrator
// с backend'ом, который ничего не выполняет, и одним worker'ом.
// Вывод — порядок, в котором задачи были бы отправлены.
func NewPlanCmd(g *Globals) *cobra.Command {
	opts := &runOptions{dryRun: true, workers: 1, skipEstimate: true}

	cmd := &cobra.Command{
		Use:   "plan FILE",
		Short: "Show the order in which workflow tasks would be executed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := g.Output()

			wf, err := loadWorkflow(args[0], opts.entrypoint)
			if err != nil {
				return err
			}

			svc, err := newServices(cmd.Context(), g, opts, false)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.orch.Run(cmd.Context(), wf, args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(result.Reports))
			for i, r := range result.Reports {
				rows[i] = []string{fmt.Sprint(i + 1), r.Path.String()}
			}
			out.Print([]string{"#", "PATH"}, rows, result.Reports)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.entrypoint, "entrypoint", "", "Override the workflow entrypoint")

	return cmd
}
