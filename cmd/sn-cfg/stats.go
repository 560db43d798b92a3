package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/filter"
	"github.com/esnet/esnet-smartnic-fw/internal/stats"
	"github.com/esnet/esnet-smartnic-fw/internal/stats/view"
)

const filterHelp = `
Filter expressions select metrics by type, scope, name, index and labels:

  type(COUNTER|GAUGE|FLAG)
  domain(m), zone(m), block(m), name(m)   where m is a string match
  indices[start:end:step, ...]            inclusive slices, or singleton
  label(key, value)                       key or value may be None
  neg(f), any(f, ...), all(f, ...)

String matches are exact(s), prefix(s), suffix(s), sub(s), re(pattern) and
split_any(pattern, part) or split_all(pattern, part), where part is
part_value(m), part_index(i) or an any/all of parts.

Example:
  sn-cfg show stats -f 'all(zone(prefix("cmac")), name(exact("total_packets")))'`

type showStatsFlags struct {
	devID       int32
	filters     []string
	metricTypes []string
	units       []string
	zeroes      bool
	labels      bool
	aliases     bool
	longName    bool
	lastUpdate  bool
}

func (f *showStatsFlags) options() (stats.Options, error) {
	opts := stats.Options{
		Units:      f.units,
		Zeroes:     f.zeroes,
		Labels:     f.labels,
		Aliases:    f.aliases,
		LongName:   f.longName,
		LastUpdate: f.lastUpdate,
	}
	flt, err := filter.ParseAll(f.filters)
	if err != nil {
		return opts, err
	}
	if flt != nil {
		opts.Filters = append(opts.Filters, flt)
	}
	for _, name := range f.metricTypes {
		t, ok := api.ParseMetricType(name)
		if !ok {
			return opts, fmt.Errorf("invalid metric type %q (choose from %s)",
				name, strings.Join(api.MetricTypeNames(), ", "))
		}
		opts.MetricTypes = append(opts.MetricTypes, t)
	}
	return opts, nil
}

func addDeviceIDFlag(cmd *cobra.Command, devID *int32) {
	cmd.Flags().Int32VarP(devID, "device-id", "d", -1,
		"0-based index of the device to operate on, -1 for all devices")
}

func newShowStatsCmd(c *client) *cobra.Command {
	f := &showStatsFlags{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Display SmartNIC statistics",
		Long:  "Display SmartNIC statistics.\n" + filterHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			stub, err := c.connect()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			req := stats.NewRequest(f.devID, opts)
			c.logger.Debug("get stats", "dev_id", f.devID, "filter", filter.String(stats.RootFilter(opts)))
			resps, err := stats.Get(ctx, stub, req)
			if err != nil {
				return err
			}
			for _, resp := range resps {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(stats.FormatResponse(resp, opts), "\n"))
			}
			return nil
		},
	}

	addDeviceIDFlag(cmd, &f.devID)
	flags := cmd.Flags()
	flags.StringArrayVarP(&f.filters, "filter", "f", nil,
		"custom expression for filtering metrics; repeated filters are ANDed")
	flags.StringArrayVarP(&f.metricTypes, "metric-type", "m", nil,
		"restrict metrics to the given type (counter, flag, gauge); repeated types are ORed")
	flags.StringArrayVarP(&f.units, "units", "u", nil,
		`restrict metrics to the given "units" label value; repeated units are ORed`)
	flags.BoolVarP(&f.zeroes, "zeroes", "z", false, "include zero valued metrics")
	flags.BoolVarP(&f.labels, "labels", "l", false, "include all labels of each metric")
	flags.BoolVarP(&f.aliases, "aliases", "a", false, "use the alias label instead of the metric name when present")
	flags.BoolVarP(&f.longName, "long-name", "n", false, "use the fully-qualified <zone>.<block>.<name> form")
	flags.BoolVar(&f.lastUpdate, "last-update", false, "include the last update timestamp")

	cmd.AddCommand(newShowStatsViewCmd(c))
	return cmd
}

func newShowStatsViewCmd(c *client) *cobra.Command {
	var (
		devID       int32
		zeroes      bool
		bytes       bool
		viewFilters []string
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Display SmartNIC statistics by view",
		Long: `Display SmartNIC statistics by view.

A view filter is a triplet <name>:<port>:<direction>. The name is a "."
separated sequence of datapath components, any of which may be globbed with
"*". The port is 0, 1 or "*" and the direction is "in", "out" or "*". Missing
trailing fields match anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := view.ParseFilters(viewFilters)
			if err != nil {
				return err
			}
			stub, err := c.connect()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			resps, err := stats.Get(ctx, stub, view.NewRequest(devID, filters, zeroes, bytes))
			if err != nil {
				return err
			}
			for _, resp := range resps {
				lines := view.Project(resp.DevID, resp.Stats, filters).Render(bytes)
				if len(lines) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
				}
			}
			return nil
		},
	}

	addDeviceIDFlag(cmd, &devID)
	flags := cmd.Flags()
	flags.BoolVarP(&zeroes, "zeroes", "z", false, "include zero valued metrics")
	flags.BoolVarP(&bytes, "bytes", "b", false, "include byte counts")
	flags.StringArrayVarP(&viewFilters, "view-filter", "v", []string{"*"},
		"select metrics by view specification; repeated filters are ORed")
	return cmd
}

func newClearStatsCmd(c *client) *cobra.Command {
	var devID int32
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Clear SmartNIC statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stub, err := c.connect()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			ids, err := stats.Clear(ctx, stub, &api.StatsRequest{DevID: devID})
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared statistics for device ID %d.\n", id)
			}
			return nil
		},
	}
	addDeviceIDFlag(cmd, &devID)
	return cmd
}
