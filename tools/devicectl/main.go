package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"energy-monitor/internal/auth"
	devicesapp "energy-monitor/internal/devices/application"
	devices "energy-monitor/internal/devices/domain"
	devicerest "energy-monitor/internal/devices/infrastructure/rest"
)

type globalFlags struct {
	baseURL string
	token   string
	secret  string
	subject string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "devicectl",
		Short:         "Manage energy-monitor devices over the HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", envOrDefault("DEVICE_API_URL", "http://localhost:8080/api/v1"), "device API base URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("DEVICE_API_TOKEN"), "bearer token")
	root.PersistentFlags().StringVar(&g.secret, "jwt-secret", os.Getenv("AUTH_JWT_SECRET"), "mint a dev token with this secret when --token is empty")
	root.PersistentFlags().StringVar(&g.subject, "user", envOrDefault("DEVICE_USER", "user-dev"), "subject of the minted dev token")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", devicerest.DefaultTimeout, "request timeout")

	root.AddCommand(
		newListCmd(g),
		newGetCmd(g),
		newCreateCmd(g),
		newUpdateCmd(g),
		newDeleteCmd(g),
		newReportCmd(g),
		newTokenCmd(g),
	)
	return root
}

// service builds a device service backed by the remote API so validation and
// ownership checks run locally before any request is sent.
func (g *globalFlags) service() (*devicesapp.Service, context.Context, error) {
	token := g.token
	if token == "" {
		if g.secret == "" {
			return nil, nil, errors.New("either --token or --jwt-secret is required")
		}
		minted, err := auth.IssueJWT([]byte(g.secret), g.subject, "", time.Hour)
		if err != nil {
			return nil, nil, err
		}
		token = minted
	}
	client, err := devicerest.NewClient(g.baseURL, devicerest.WithTimeout(g.timeout), devicerest.WithToken(token))
	if err != nil {
		return nil, nil, err
	}
	svc, err := devicesapp.NewService(client)
	if err != nil {
		return nil, nil, err
	}
	ctx := auth.WithToken(auth.WithPrincipal(context.Background(), g.subject), token)
	return svc, ctx, nil
}

func newListCmd(g *globalFlags) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List devices, optionally filtered by name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, ctx, err := g.service()
			if err != nil {
				return err
			}
			list, err := svc.Search(ctx, query)
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive name filter")
	return cmd
}

func newGetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := g.service()
			if err != nil {
				return err
			}
			device, err := svc.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			if device == nil {
				return fmt.Errorf("device %s not found", args[0])
			}
			return printJSON(cmd, device)
		},
	}
}

func newCreateCmd(g *globalFlags) *cobra.Command {
	var (
		input    devices.DeviceInput
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("quantity") {
				input.Quantity = &quantity
			}
			svc, ctx, err := g.service()
			if err != nil {
				return err
			}
			device, err := svc.Create(ctx, input)
			if err != nil {
				return err
			}
			return printJSON(cmd, device)
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "device name")
	cmd.Flags().Float64Var(&input.PowerWatts, "watts", 0, "power draw in watts")
	cmd.Flags().Float64Var(&input.HoursPerDay, "hours", 0, "hours of use per day")
	cmd.Flags().IntVar(&quantity, "quantity", devices.DefaultQuantity, "number of identical units")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUpdateCmd(g *globalFlags) *cobra.Command {
	var (
		name     string
		watts    float64
		hours    float64
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change selected fields of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch devices.DevicePatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("watts") {
				patch.PowerWatts = &watts
			}
			if flags.Changed("hours") {
				patch.HoursPerDay = &hours
			}
			if flags.Changed("quantity") {
				patch.Quantity = &quantity
			}
			svc, ctx, err := g.service()
			if err != nil {
				return err
			}
			device, err := svc.Update(ctx, args[0], patch)
			if err != nil {
				return err
			}
			if device == nil {
				return fmt.Errorf("device %s not found", args[0])
			}
			return printJSON(cmd, device)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "device name")
	cmd.Flags().Float64Var(&watts, "watts", 0, "power draw in watts")
	cmd.Flags().Float64Var(&hours, "hours", 0, "hours of use per day")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "number of identical units")
	return cmd
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := g.service()
			if err != nil {
				return err
			}
			if err := svc.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newReportCmd(g *globalFlags) *cobra.Command {
	var (
		advanced bool
		rate     float64
		currency string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print consumption and cost totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, ctx, err := g.service()
			if err != nil {
				return err
			}
			list, err := svc.ListAll(ctx)
			if err != nil {
				return err
			}
			if advanced {
				return printJSON(cmd, devicesapp.BuildAdvancedReport(list, rate, currency))
			}
			totals := devices.SumTotals(list, rate)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "devices:  %d (%d units)\n", totals.Devices, totals.Quantity)
			fmt.Fprintf(out, "monthly:  %.2f kWh\n", totals.MonthlyConsumption)
			fmt.Fprintf(out, "cost:     %.2f %s\n", totals.MonthlyCost, currency)
			return nil
		},
	}
	cmd.Flags().BoolVar(&advanced, "advanced", false, "include forecast and saving suggestions")
	cmd.Flags().Float64Var(&rate, "rate", devices.DefaultPricePerKWh, "price per kWh")
	cmd.Flags().StringVar(&currency, "currency", devices.DefaultCurrency, "currency code")
	return cmd
}

func newTokenCmd(g *globalFlags) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a dev token for --user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.secret == "" {
				return errors.New("--jwt-secret is required")
			}
			token, err := auth.IssueJWT([]byte(g.secret), g.subject, "", ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
