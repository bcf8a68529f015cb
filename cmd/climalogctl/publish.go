package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"climalog/internal/mqtt"
)

var publishCmd = &cobra.Command{
	Use:     "publish",
	Short:   "Publish one reading to the MQTT readings topic",
	Example: "  climalogctl publish --broker localhost --temp 21 --rh 48",
	RunE:    runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	addMQTTFlags(publishCmd)
	addReadingFlags(publishCmd)
}

// addMQTTFlags registers broker flags. They are bound under mqtt.* only when
// the command runs, since several commands share the keys and a viper key
// holds a single flag binding.
func addMQTTFlags(cmd *cobra.Command) {
	cmd.Flags().String("broker", "localhost", "MQTT broker host")
	cmd.Flags().Int("port", 1883, "MQTT broker port")
	cmd.Flags().String("topic", "climalog/readings", "MQTT topic")
	cmd.Flags().String("client-id", "climalogctl", "MQTT client id")

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		for key, flag := range map[string]string{
			"mqtt.broker":    "broker",
			"mqtt.port":      "port",
			"mqtt.topic":     "topic",
			"mqtt.client_id": "client-id",
		} {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return fmt.Errorf("bind %s flag: %w", flag, err)
			}
		}
		return nil
	}
}

func connectPublisher(ctx context.Context) (*mqtt.Publisher, error) {
	cfg := mqtt.PublisherConfig{
		Broker:   viper.GetString("mqtt.broker"),
		Port:     viper.GetInt("mqtt.port"),
		Topic:    viper.GetString("mqtt.topic"),
		ClientID: viper.GetString("mqtt.client_id"),
	}
	p := mqtt.NewPublisher(cfg, GetLogger())

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.Connect(connectCtx); err != nil {
		p.Disconnect()
		return nil, err
	}
	return p, nil
}

func runPublish(cmd *cobra.Command, _ []string) error {
	r, err := readingFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}

	p, err := connectPublisher(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Disconnect()

	if err := p.PublishReading(r); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published reading at %v to %s\n", r.Time, viper.GetString("mqtt.topic"))
	return nil
}
