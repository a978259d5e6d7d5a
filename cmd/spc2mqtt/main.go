package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/acre-exp/spc2mqtt/internal/config"
	"github.com/acre-exp/spc2mqtt/internal/mqtt"
	"github.com/acre-exp/spc2mqtt/internal/spc"
	"github.com/acre-exp/spc2mqtt/internal/watchdog"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "spc2mqtt",
		Short:         "Bridge an ACRE SPC42 alarm panel's web UI to MQTT",
		RunE:          runWatchdog,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "/etc/acre_exp/config.yml", "path to the YAML configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Fetch the panel state once and print it as JSON",
		RunE:  runStatus,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	panel, err := spc.New(cfg.SPC)
	if err != nil {
		return err
	}

	// One watchdog per panel: concurrent instances invalidate each other's
	// sessions.
	lock := flock.New(filepath.Join(cfg.SPC.SessionCacheDir, "spc2mqtt.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		fmt.Println("another instance is already running, exiting")
		return nil
	}
	defer lock.Unlock() //nolint:errcheck

	mq := mqtt.New(mqtt.Config{
		Host:      cfg.MQTT.Host,
		Port:      cfg.MQTT.Port,
		User:      cfg.MQTT.User,
		Pass:      cfg.MQTT.Pass,
		BaseTopic: cfg.MQTT.BaseTopic,
		ClientID:  cfg.MQTT.ClientID,
		QoS:       byte(cfg.MQTT.QoS),
		Retain:    cfg.MQTT.Retain,
	})

	wd := watchdog.New(&cfg, panel, mq)
	router := watchdog.NewRouter(&cfg, panel, mq)

	mq.OnConnect = func() {
		if err := router.Subscribe(mq); err != nil {
			log.Printf("mqtt: subscribe commands: %v", err)
		}
	}
	mq.OnDisconnect = func(err error) {
		log.Printf("mqtt: connection lost: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("spc2mqtt %s starting\n", config.Version)
	fmt.Printf("  Panel: %s\n", cfg.SPC.Host)
	fmt.Printf("  Broker: %s:%d (base topic %q)\n", cfg.MQTT.Host, cfg.MQTT.Port, cfg.MQTT.BaseTopic)
	fmt.Printf("  Refresh: %.1fs state, %.1fs controller\n",
		cfg.Watchdog.RefreshInterval, cfg.Watchdog.ControllerRefreshInterval)
	fmt.Println()

	if err := mq.Connect(ctx); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		router.Run(ctx)
	}()

	wd.Run(ctx)
	wg.Wait()

	mq.Disconnect()
	fmt.Println("clean shutdown")
	return nil
}

// runStatus performs a single authenticated fetch of every
// information-enabled category and prints the result as indented JSON.
func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	panel, err := spc.New(cfg.SPC)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := make(map[string]any)
	info := cfg.Watchdog.Information

	if info.Zones {
		zones, err := panel.FetchZones(ctx)
		if err != nil {
			return err
		}
		out["zones"] = zones
	}
	if info.Secteurs {
		sectors, err := panel.FetchSectors(ctx)
		if err != nil {
			return err
		}
		out["secteurs"] = sectors
	}
	if info.Doors {
		doors, err := panel.FetchDoors(ctx)
		if err != nil {
			return err
		}
		out["doors"] = doors
	}
	if info.Outputs {
		outputs, err := panel.FetchOutputs(ctx)
		if err != nil {
			return err
		}
		out["outputs"] = outputs
	}
	etat, err := panel.FetchControllerStatus(ctx)
	if err != nil {
		return err
	}
	out["etat"] = etat

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
