package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/nerrad567/farm-bridge/internal/account"
	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/config"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/database"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
	"github.com/nerrad567/farm-bridge/migrations"
)

type simulateOptions struct {
	devices   int
	deviceIDs []string
	interval  time.Duration
	count     int
	owner     string
}

func newSimulateCmd(load configLoader) *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish synthetic device readings to the bus",
		Long: `Acts as one or more greenhouse devices: every interval each device
publishes a reading on the graph and realtime topics. With --owner the
devices are also registered in the local database under that grower,
so the bridge attributes and stores what they send.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			return runSimulate(cmd.Context(), cfg, log, opts)
		},
	}

	cmd.Flags().IntVar(&opts.devices, "devices", 1, "number of random devices to simulate")
	cmd.Flags().StringSliceVar(&opts.deviceIDs, "device-id", nil, "device ids to simulate instead of random ones")
	cmd.Flags().DurationVar(&opts.interval, "interval", 5*time.Second, "time between readings")
	cmd.Flags().IntVar(&opts.count, "count", 0, "readings per device before exiting (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "register the devices under this grower's email")
	return cmd
}

func runSimulate(ctx context.Context, cfg *config.Config, log *logging.Logger, opts simulateOptions) error {
	if opts.interval <= 0 {
		return errors.New("interval must be positive")
	}

	ids := opts.deviceIDs
	if len(ids) == 0 {
		for i := 0; i < opts.devices; i++ {
			ids = append(ids, randomDeviceID())
		}
	}
	if len(ids) == 0 {
		return errors.New("nothing to simulate: --devices must be at least 1")
	}

	sims := make([]*simDevice, len(ids))
	for i, id := range ids {
		sims[i] = newSimDevice(id)
	}

	if opts.owner != "" {
		if err := registerSimDevices(ctx, cfg.Database, opts.owner, sims, log); err != nil {
			return err
		}
	}

	// The simulator must not take over the bridge's session or status topic.
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = cfg.MQTT.Broker.ClientID + "-sim"
	client, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer client.Close()

	s := &simulator{pub: client, devices: sims, qos: byte(cfg.MQTT.QoS), log: log}
	log.Info("simulating devices", "devices", ids, "interval", opts.interval)
	return s.run(ctx, opts.interval, opts.count)
}

// registerSimDevices seeds the owner's account and a record per device.
func registerSimDevices(ctx context.Context, dbCfg config.DatabaseConfig, owner string, sims []*simDevice, log *logging.Logger) error {
	db, err := database.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	acct := &account.Account{Email: owner, Name: gofakeit.Name(), IsActive: true}
	if _, err := account.EnsureAccount(ctx, account.NewSQLiteRepository(db.DB), acct, log.Logger); err != nil {
		return err
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	for _, sim := range sims {
		rec := sim.record(strings.ToLower(strings.TrimSpace(owner)))
		err := registry.CreateDevice(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, device.ErrDeviceExists), errors.Is(err, device.ErrDeviceNameTaken):
			log.Info("simulated device already registered", "device_id", sim.id)
		default:
			return fmt.Errorf("registering %s: %w", sim.id, err)
		}
	}
	return nil
}

// publisher is the part of the bus client the simulator needs.
type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

type simulator struct {
	pub     publisher
	devices []*simDevice
	qos     byte
	log     *logging.Logger
}

// run publishes one round immediately, then one per interval.
func (s *simulator) run(ctx context.Context, interval time.Duration, count int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for sent := 0; count == 0 || sent < count; sent++ {
		if err := s.tick(); err != nil {
			s.log.Warn("simulated publish failed", "error", err)
		}
		if count != 0 && sent+1 == count {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// tick publishes one reading per device on both telemetry topics.
func (s *simulator) tick() error {
	var errs []error
	for _, d := range s.devices {
		payload, err := json.Marshal(d.next())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, topic := range []string{mqtt.Topics{}.Graph(), mqtt.Topics{}.Realtime()} {
			if err := s.pub.Publish(topic, payload, s.qos, false); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", d.id, topic, err))
			}
		}
	}
	return errors.Join(errs...)
}

// simDevice drifts slowly around a baseline picked at startup.
type simDevice struct {
	id      string
	plant   string
	current telemetry.Reading
}

func randomDeviceID() string {
	return strings.ToUpper(gofakeit.LetterN(6) + gofakeit.DigitN(6))
}

func newSimDevice(id string) *simDevice {
	return &simDevice{
		id:    device.NormalizeDeviceID(id),
		plant: gofakeit.Vegetable(),
		current: telemetry.Reading{
			DeviceID:     device.NormalizeDeviceID(id),
			Temperature:  gofakeit.Float64Range(18, 28),
			Humidity:     gofakeit.Float64Range(45, 75),
			SoilMoisture: gofakeit.Float64Range(25, 55),
		},
	}
}

func (d *simDevice) next() telemetry.Reading {
	d.current.Temperature = drift(d.current.Temperature, 0.5, -10, 50)
	d.current.Humidity = drift(d.current.Humidity, 1.5, 0, 100)
	d.current.SoilMoisture = drift(d.current.SoilMoisture, 1, 0, 100)
	return d.current
}

func (d *simDevice) record(owner string) *device.Record {
	return &device.Record{
		OwnerEmail: owner,
		DeviceID:   d.id,
		DeviceName: "sim-" + strings.ToLower(d.id),
		PlantName:  d.plant,
		Thresholds: device.Thresholds{
			MinTemperature: 15, MaxTemperature: 30,
			MinHumidity: 40, MaxHumidity: 80,
			MinSoilMoisture: 20, MaxSoilMoisture: 60,
		},
	}
}

// drift moves v by at most step, clamped to [lo, hi] and rounded to 0.1.
func drift(v, step, lo, hi float64) float64 {
	v += gofakeit.Float64Range(-step, step)
	v = math.Max(lo, math.Min(hi, v))
	return math.Round(v*10) / 10
}
