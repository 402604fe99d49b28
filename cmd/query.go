package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkeffer/weewx-xaggs/internal/api"
	"github.com/tkeffer/weewx-xaggs/internal/units"
	"github.com/tkeffer/weewx-xaggs/internal/xaggs"
	"github.com/tkeffer/weewx-xaggs/internal/xtypes"
)

var (
	qDate  string
	qStart string
	qStop  string
	qVal   string
	qUnit  string
	qJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <obs_type> <aggregate>",
	Short: "Compute one aggregate directly against the archive",
	Example: `  xaggsd query outTemp historical_max --date 2024-06-15
  xaggsd query outTemp avg_ge --start 2024-06-01 --stop 2024-07-01 --val 25 --unit degree_C`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&qDate, "date", "", "calendar day (YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&qStart, "start", "", "span start (RFC3339, YYYY-MM-DD or epoch)")
	queryCmd.Flags().StringVar(&qStop, "stop", "", "span stop, exclusive")
	queryCmd.Flags().StringVar(&qVal, "val", "", "threshold value for avg_* aggregates")
	queryCmd.Flags().StringVar(&qUnit, "unit", "", "unit of --val, e.g. degree_C")
	queryCmd.Flags().BoolVar(&qJSON, "json", false, "print the result as JSON")
	queryCmd.MarkFlagsMutuallyExclusive("date", "start")
	queryCmd.MarkFlagsRequiredTogether("start", "stop")
	queryCmd.MarkFlagsRequiredTogether("val", "unit")
	queryCmd.MarkFlagsOneRequired("date", "start")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	obsType, aggregate := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	span, err := api.ParseSpan(qDate, qStart, qStop)
	if err != nil {
		return fmt.Errorf("invalid time span: %w", err)
	}

	var opts xtypes.Options
	if qVal != "" {
		v, err := strconv.ParseFloat(qVal, 64)
		if err != nil {
			return fmt.Errorf("invalid --val %q: %w", qVal, err)
		}
		val := units.NewQuantity(v, units.Unit(qUnit), "")
		opts.Val = &val
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}
	reg := xtypes.NewRegistry(nil)
	svc, err := xaggs.NewService(reg, resolver, slog.Default())
	if err != nil {
		return err
	}
	svc.Start()
	defer svc.Stop()

	q, err := reg.GetAggregate(ctx, obsType, span, aggregate, s, opts)
	if err != nil {
		return err
	}

	if qJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"obs_type":  obsType,
			"aggregate": aggregate,
			"start":     time.Unix(span.Start, 0).Format(time.RFC3339),
			"stop":      time.Unix(span.Stop, 0).Format(time.RFC3339),
			"value":     q.Magnitude,
			"unit":      q.Unit,
			"group":     q.Group,
		})
	}

	fmt.Printf("%s %s %s: %s\n", obsType, aggregate, span, formatQuantity(q))
	return nil
}

func formatQuantity(q units.Quantity) string {
	if q.Magnitude == nil {
		return "no data"
	}
	if q.Group == units.GroupTime && q.Unit == "unix_epoch" {
		return time.Unix(int64(*q.Magnitude), 0).Format(time.RFC3339)
	}
	return fmt.Sprintf("%g %s", *q.Magnitude, q.Unit)
}
