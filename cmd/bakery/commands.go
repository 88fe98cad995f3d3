package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bakerycore/internal/adapters/httpapi"
	"bakerycore/internal/adapters/reports"
	"bakerycore/pkg/client"
	"bakerycore/pkg/domain"
)

const dayLayout = "2006-01-02"

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseDecimal(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, raw)
	}
	return d, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse(dayLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return t, nil
}

func newIngredientCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "ingredient", Short: "Inspect and adjust ingredient stock"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every ingredient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := client.New(opts.server).ListIngredients(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "low-stock",
		Short: "List ingredients at or below their minimum stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := client.New(opts.server).LowStock(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	})

	var (
		unit                  string
		stock, minimum, price string
	)
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an ingredient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.Ingredient{Name: args[0], Unit: domain.MeasurementUnit(unit)}
			var err error
			if in.CurrentStock, err = parseDecimal("stock", stock); err != nil {
				return err
			}
			if in.MinimumStock, err = parseDecimal("minimum", minimum); err != nil {
				return err
			}
			if in.UnitPrice, err = parseDecimal("price", price); err != nil {
				return err
			}
			out, err := client.New(opts.server).CreateIngredient(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	create.Flags().StringVar(&unit, "unit", string(domain.UnitKilogram), "measurement unit")
	create.Flags().StringVar(&stock, "stock", "0", "initial stock")
	create.Flags().StringVar(&minimum, "minimum", "0", "minimum stock before alerting")
	create.Flags().StringVar(&price, "price", "0", "unit price")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "adjust [--] ID DELTA",
		Short: "Apply a signed stock delta (put -- before negative deltas)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			delta, err := parseDecimal("delta", args[1])
			if err != nil {
				return err
			}
			out, err := client.New(opts.server).AdjustStock(cmd.Context(), id, delta)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	})

	var restockPrice string
	restock := &cobra.Command{
		Use:   "restock ID QUANTITY",
		Short: "Receive stock, optionally at a new unit price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := parseDecimal("quantity", args[1])
			if err != nil {
				return err
			}
			var unitPrice *decimal.Decimal
			if restockPrice != "" {
				p, err := parseDecimal("price", restockPrice)
				if err != nil {
					return err
				}
				unitPrice = &p
			}
			out, err := client.New(opts.server).Restock(cmd.Context(), id, qty, unitPrice)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	restock.Flags().StringVar(&restockPrice, "price", "", "new unit price")
	cmd.AddCommand(restock)
	return cmd
}

func newRecipeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "recipe", Short: "Recipe costing and feasibility"}

	cmd.AddCommand(&cobra.Command{
		Use:   "cost ID",
		Short: "Show batch and per-unit cost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			out, err := client.New(opts.server).RecipeCost(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "feasibility ID BATCHES",
		Short: "Check whether stock covers a number of batches",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := parseDecimal("batches", args[1])
			if err != nil {
				return err
			}
			out, err := client.New(opts.server).Feasibility(cmd.Context(), id, qty)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	})
	return cmd
}

func newProductionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "production", Short: "Production runs"}

	var date string
	efficiency := &cobra.Command{
		Use:   "efficiency",
		Short: "Aggregate efficiency of the runs on a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			eff, err := client.New(opts.server).Efficiency(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(cmd, httpapi.EfficiencyResponse{Date: day.Format(dayLayout), Efficiency: eff})
		},
	}
	efficiency.Flags().StringVar(&date, "date", "", "day (YYYY-MM-DD, default today UTC)")
	cmd.AddCommand(efficiency)
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Reports and exports"}

	var date string
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Production and sales summary of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			out, err := client.New(opts.server).DailySummary(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	daily.Flags().StringVar(&date, "date", "", "day (YYYY-MM-DD, default today UTC)")
	cmd.AddCommand(daily)

	var (
		start, end string
		formats    []string
	)
	export := &cobra.Command{
		Use:   "export KIND",
		Short: "Queue an export (sales_by_product, sales_by_payment, waste, production_cost, stock_alerts, daily_summary)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httpapi.ExportRequest{Kind: reports.Kind(args[0]), Start: start, End: end, RequestedBy: "cli"}
			for _, f := range formats {
				req.Formats = append(req.Formats, reports.Format(f))
			}
			out, err := client.New(opts.server).RequestExport(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	export.Flags().StringVar(&start, "start", "", "first day (YYYY-MM-DD)")
	export.Flags().StringVar(&end, "end", "", "last day (YYYY-MM-DD, default start)")
	export.Flags().StringSliceVar(&formats, "format", nil, "json and/or csv")
	_ = export.MarkFlagRequired("start")
	cmd.AddCommand(export)

	cmd.AddCommand(&cobra.Command{
		Use:   "export-status ID",
		Short: "Show the status of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client.New(opts.server).GetExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	})
	return cmd
}
