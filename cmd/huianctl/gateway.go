package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinywideclouds/go-huian-notify-service/huiannotify/config"
	"github.com/tinywideclouds/go-huian-notify-service/internal/lifecycle"
	"github.com/tinywideclouds/go-huian-notify-service/internal/platform/huian"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

var probeCmd = &cobra.Command{
	Use:   "probe <registration_id>",
	Short: "Send the setup confirmation push to a registration id",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

var sendCmd = &cobra.Command{
	Use:   "send <registration_id>",
	Short: "Send a single push",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

var (
	sendTitle      string
	sendMessage    string
	sendBadge      string
	sendSound      string
	sendProduction bool
)

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendTitle, "title", "t", lifecycle.DefaultTitle, "notification title")
	sendCmd.Flags().StringVarP(&sendMessage, "message", "m", "", "notification body")
	sendCmd.Flags().StringVar(&sendBadge, "badge", "", "badge value (default +1)")
	sendCmd.Flags().StringVar(&sendSound, "sound", "", "sound name (default \"default\")")
	sendCmd.Flags().BoolVar(&sendProduction, "production", false, "use the production APNs environment")
	_ = sendCmd.MarkFlagRequired("message")
}

// gatewayConfig reads the same HUIAN_* variables as the service.
func gatewayConfig() (config.HuianConfig, error) {
	cfg := config.HuianConfig{
		AppKey:       os.Getenv("HUIAN_APP_KEY"),
		MasterSecret: os.Getenv("HUIAN_MASTER_SECRET"),
		BaseURL:      os.Getenv("HUIAN_BASE_URL"),
		Timeout:      config.DefaultHuianTimeout,
	}
	if cfg.AppKey == "" || cfg.MasterSecret == "" {
		return cfg, fmt.Errorf("HUIAN_APP_KEY and HUIAN_MASTER_SECRET must be set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultHuianBaseURL
	}
	if val := os.Getenv("HUIAN_TIMEOUT_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	return cfg, nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := gatewayConfig()
	if err != nil {
		return err
	}
	d := huian.NewDispatcher(cfg, newLogger())

	if err := d.Probe(context.Background(), args[0]); err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Registration id accepted by the gateway.")
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := gatewayConfig()
	if err != nil {
		return err
	}
	d := huian.NewDispatcher(cfg, newLogger())

	rec := device.Record{RegistrationID: args[0], Production: sendProduction}
	res := d.Send(context.Background(), rec, dispatch.Notification{
		Title: sendTitle,
		Body:  sendMessage,
		Badge: sendBadge,
		Sound: sendSound,
	})

	out := cmd.OutOrStdout()
	switch res.Outcome {
	case dispatch.Delivered:
		fmt.Fprintf(out, "delivered msg_id=%s\n", res.MessageID)
		return nil
	case dispatch.Rejected:
		return fmt.Errorf("rejected with HTTP %d: %s", res.StatusCode, res.Body)
	default:
		if res.Timeout {
			return fmt.Errorf("gateway timed out after %s", cfg.Timeout)
		}
		return fmt.Errorf("transport error: %w", res.Err)
	}
}
