package main

import (
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"climalog/internal/modules/readings/service"
	"climalog/internal/modules/readings/types"
)

// addReadingFlags registers --time, --temp and --rh.
func addReadingFlags(cmd *cobra.Command) {
	cmd.Flags().String("time", "", "Unix epoch seconds (default now)")
	cmd.Flags().String("temp", "", "temperature; omit to send none")
	cmd.Flags().String("rh", "", "relative humidity; omit to send none")
}

// readingFromFlags validates the flags with the same rules the server applies
// to a submitted form.
func readingFromFlags(cmd *cobra.Command, now time.Time) (types.Reading, error) {
	ts, _ := cmd.Flags().GetString("time")
	if ts == "" {
		ts = strconv.FormatInt(now.Unix(), 10)
	}
	temp, _ := cmd.Flags().GetString("temp")
	rh, _ := cmd.Flags().GetString("rh")

	return service.ParseForm(url.Values{
		service.FieldTime: {ts},
		service.FieldTemp: {temp},
		service.FieldRH:   {rh},
	})
}
