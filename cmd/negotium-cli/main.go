// Negotium CLI — инструмент командной строки для управления
// переговорами, очередями симуляций и восстановлением через HTTP API.
//
// Использование:
//
//	negotium [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	negotiation  Управление переговорами и товарами
//	queue        Управление очередями симуляций
//	run          Просмотр симуляций
//	catalog      Справочники методик, тактик, личностей и дистанций
//	recovery     Поиск и восстановление осиротевших симуляций
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Negotium/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "negotium",
		Short:         "Negotium CLI — negotiation simulation queues",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewNegotiationCmd(clientFn, outputFn),
		cli.NewQueueCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewCatalogCmd(clientFn, outputFn),
		cli.NewRecoveryCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
