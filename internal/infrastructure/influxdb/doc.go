// Package influxdb mirrors stored telemetry samples into InfluxDB.
//
// SQLite stays the source of truth for graph queries; the mirror exists so
// growers can point Grafana or the InfluxDB UI at their readings. It is
// optional and switched on with influxdb.enabled.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading(influxdb.Reading{
//	    OwnerEmail: "alice@example.com",
//	    DeviceID:   "ABCDEF123456",
//	    Temperature: 21.5,
//	})
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Write failures are reported through SetOnError.
package influxdb
