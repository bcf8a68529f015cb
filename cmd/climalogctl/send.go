package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"climalog/internal/client"
)

var sendCmd = &cobra.Command{
	Use:     "send",
	Short:   "Post one reading to /senddata",
	Example: "  climalogctl send --temp 22.5 --rh 55",
	RunE:    runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addReadingFlags(sendCmd)
}

func runSend(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()

	r, err := readingFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}

	server := viper.GetString("server")
	if err := client.New(server, nil).Send(cmd.Context(), r); err != nil {
		return err
	}

	logger.Debug("reading sent", "server", server, "time", r.Time)
	fmt.Fprintln(cmd.OutOrStdout(), "Data sent was successful")
	return nil
}
