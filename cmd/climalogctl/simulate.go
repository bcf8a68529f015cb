package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"climalog/internal/client"
	"climalog/internal/modules/readings/types"
	"climalog/internal/simulate"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send generated readings like a live sensor",
	Long: `Generate plausible temperature and humidity readings and deliver them
over HTTP (the sensor's /senddata form) or MQTT.

With --backfill the readings are timestamped into the past and sent
immediately; otherwise one is sent every --interval until --count is reached
or the command is interrupted.`,
	Example: "  climalogctl simulate --count 60 --backfill\n  climalogctl simulate --transport mqtt --interval 2s",
	RunE:    runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	addMQTTFlags(simulateCmd)

	simulateCmd.Flags().String("transport", "http", "delivery transport (http, mqtt)")
	simulateCmd.Flags().Int("count", 10, "number of readings; 0 runs until interrupted")
	simulateCmd.Flags().Duration("interval", 5*time.Second, "time between readings")
	simulateCmd.Flags().Bool("backfill", false, "timestamp readings into the past and send them at once")
	simulateCmd.Flags().Uint64("seed", 0, "generator seed (0 is random)")
	simulateCmd.Flags().Float64("drop-rate", 0, "chance each of temp/rh is omitted")

	_ = viper.BindPFlag("simulate.transport", simulateCmd.Flags().Lookup("transport"))
	_ = viper.BindPFlag("simulate.count", simulateCmd.Flags().Lookup("count"))
	_ = viper.BindPFlag("simulate.interval", simulateCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("simulate.backfill", simulateCmd.Flags().Lookup("backfill"))
	_ = viper.BindPFlag("simulate.seed", simulateCmd.Flags().Lookup("seed"))
	_ = viper.BindPFlag("simulate.drop_rate", simulateCmd.Flags().Lookup("drop-rate"))
}

type deliverFunc func(ctx context.Context, r types.Reading) error

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := GetLogger()

	count := viper.GetInt("simulate.count")
	interval := viper.GetDuration("simulate.interval")
	backfill := viper.GetBool("simulate.backfill")
	if interval <= 0 {
		return fmt.Errorf("invalid --interval %s (must be > 0)", interval)
	}
	if backfill && count <= 0 {
		return fmt.Errorf("--backfill needs a positive --count")
	}

	gen := simulate.New(viper.GetUint64("simulate.seed"))
	gen.DropRate = viper.GetFloat64("simulate.drop_rate")

	var deliver deliverFunc
	switch transport := viper.GetString("simulate.transport"); transport {
	case "http":
		c := client.New(viper.GetString("server"), nil)
		deliver = c.Send
	case "mqtt":
		p, err := connectPublisher(ctx)
		if err != nil {
			return err
		}
		defer p.Disconnect()
		deliver = func(_ context.Context, r types.Reading) error { return p.PublishReading(r) }
	default:
		return fmt.Errorf("invalid --transport %q (allowed: http, mqtt)", transport)
	}

	logger.Info("simulating sensor",
		"transport", viper.GetString("simulate.transport"),
		"count", count,
		"interval", interval,
		"backfill", backfill,
	)

	if backfill {
		for _, r := range gen.Series(time.Now(), count, interval) {
			if err := deliver(ctx, r); err != nil {
				return err
			}
		}
		logger.Info("backfill complete", "sent", count)
		return nil
	}

	return streamReadings(ctx, logger, gen, deliver, count, interval)
}

// streamReadings delivers one reading per interval until count attempts have
// been made (count <= 0 means until ctx ends). Failed deliveries count as
// attempts so an unreachable server cannot keep the loop alive.
func streamReadings(ctx context.Context, logger *slog.Logger, gen *simulate.Generator, deliver deliverFunc, count int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts, sent := 0, 0
	for {
		r := gen.Reading(time.Now())
		attempts++
		if err := deliver(ctx, r); err != nil {
			logger.Error("delivery failed", "error", err)
		} else {
			sent++
			logger.Info("reading sent", "time", r.Time, "temp", optional(r.Temp), "rh", optional(r.RH))
		}

		if count > 0 && attempts >= count {
			if sent == 0 {
				return fmt.Errorf("none of %d readings were delivered", attempts)
			}
			logger.Info("simulation complete", "sent", sent, "failed", attempts-sent)
			return nil
		}

		select {
		case <-ctx.Done():
			logger.Info("simulation stopped", "sent", sent, "failed", attempts-sent)
			return nil
		case <-ticker.C:
		}
	}
}
