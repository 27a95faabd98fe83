package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/walletsync/internal/control"
	"github.com/vietddude/walletsync/internal/core/domain"
)

var network string

var registerCmd = &cobra.Command{
	Use:   "register <uid> <public-key>",
	Short: "Store the public key used to sign in a user",
	Args:  cobra.ExactArgs(2),
	Run:   runRegister,
}

var accountsCmd = &cobra.Command{
	Use:   "accounts <uid>",
	Short: "Sign in a user and list their ranked account groups",
	Args:  cobra.ExactArgs(1),
	Run:   runAccounts,
}

var tokensCmd = &cobra.Command{
	Use:   "tokens <address>",
	Short: "List fungible token balances of an address",
	Args:  cobra.ExactArgs(1),
	Run:   runTokens,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <address>",
	Short: "Tell whether an address is a Flow or EVM account",
	Args:  cobra.ExactArgs(1),
	Run:   runClassify,
}

func init() {
	tokensCmd.Flags().StringVar(&network, "network", string(domain.Mainnet), "network to query")
	rootCmd.AddCommand(registerCmd, accountsCmd, tokensCmd, classifyCmd)
}

func closeApp(app *control.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		slog.Warn("Error during shutdown", "error", err)
	}
}

func runRegister(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	app := newApp(ctx)
	defer closeApp(app)

	if err := app.Keys.Register(ctx, args[0], args[1]); err != nil {
		slog.Error("Failed to register key", "uid", args[0], "error", err)
		os.Exit(1)
	}
	slog.Info("Key registered", "uid", args[0])
}

func runAccounts(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	app := newApp(ctx)
	defer closeApp(app)

	if err := app.Wallet.SignIn(ctx, args[0]); err != nil {
		slog.Error("Sign in failed", "uid", args[0], "error", err)
		os.Exit(1)
	}

	groups := app.Accounts.FetchAccountInfo(ctx, app.Wallet.MainAccounts())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "GROUP\tTYPE\tADDRESS\tNAME\tFLOW\tNFTS")
	for i, group := range groups {
		for _, m := range group {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
				i, m.Type, m.Address, m.Name, m.Count.FlowBalance.String(), m.Count.NFTCount)
		}
	}
	_ = w.Flush()
}

func runTokens(cmd *cobra.Command, args []string) {
	addr, err := domain.ParseAddress(args[0])
	if err != nil {
		slog.Error("Invalid address", "address", args[0], "error", err)
		os.Exit(1)
	}
	net, err := domain.ParseNetwork(network)
	if err != nil {
		slog.Error("Invalid network", "network", network, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app := newApp(ctx)
	defer closeApp(app)

	tokens, err := app.Tokens.FTBalance(ctx, addr, net, true)
	if err != nil {
		slog.Error("Failed to load balances", "address", addr, "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SYMBOL\tNAME\tBALANCE\tVALUE\tVERIFIED")
	for _, t := range tokens {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
			t.Symbol, t.Name, t.Balance.String(), t.BalanceInCurrency.StringFixed(2), t.Verified)
	}
	_ = w.Flush()
}

func runClassify(cmd *cobra.Command, args []string) {
	addr, err := domain.ParseAddress(args[0])
	if err != nil {
		fmt.Printf("%s\tunknown\n", args[0])
		return
	}
	fmt.Printf("%s\t%s\n", addr, addr.Kind())
}
