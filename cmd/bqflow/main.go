// bqflow — планировщик иерархических workflow из SQL-запросов.
//
// Использование:
//
//	bqflow [--db-url DSN] [--amqp-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run       Выполнить workflow (.yaml) или одиночный запрос (.sql)
//	validate  Проверить определение workflow
//	plan      Показать порядок выполнения без запросов к БД
//	schedule  Запускать workflow по cron или интервалу
//	serve     Выполнять runs из очереди runs.requested
//	history   Показать историю runs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/bqflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	g := &cli.Globals{}

	rootCmd := &cobra.Command{
		Use:           "bqflow",
		Short:         "Run hierarchical batch query workflows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.AddFlags(rootCmd)

	rootCmd.AddCommand(
		cli.NewRunCmd(g),
		cli.NewValidateCmd(g),
		cli.NewPlanCmd(g),
		cli.NewScheduleCmd(g),
		cli.NewServeCmd(g),
		cli.NewHistoryCmd(g),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
