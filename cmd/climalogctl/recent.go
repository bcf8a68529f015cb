package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"climalog/internal/client"
	"climalog/internal/modules/readings/types"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the newest readings from /data",
	RunE:  runRecent,
}

func init() {
	rootCmd.AddCommand(recentCmd)

	recentCmd.Flags().Int("num", 0, "number of readings (0 uses the server default)")
	recentCmd.Flags().Bool("json", false, "print the raw JSON array")
}

func runRecent(cmd *cobra.Command, _ []string) error {
	num, _ := cmd.Flags().GetInt("num")
	asJSON, _ := cmd.Flags().GetBool("json")

	readings, err := client.New(viper.GetString("server"), nil).Recent(cmd.Context(), num)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(readings)
	}
	return printReadings(cmd.OutOrStdout(), readings)
}

func printReadings(w io.Writer, readings []types.Reading) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tTEMP\tRH")
	for _, r := range readings {
		whole, frac := math.Modf(r.Time)
		at := time.Unix(int64(whole), int64(frac*1e9)).UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, at, optional(r.Temp), optional(r.RH))
	}
	return tw.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
