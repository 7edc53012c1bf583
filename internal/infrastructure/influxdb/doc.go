// Package influxdb mirrors simulated device telemetry into InfluxDB v2.
//
// When enabled, every telemetry sample a device publishes is also written
// as a point tagged by serial number, kind and derived state, and every
// power transition applied by the reconciler as a point tagged by its
// source. Measurement names and extra tags come from the influxdb section
// of config.yaml.
//
// # Usage
//
//	mirror, err := influxdb.Open(ctx, cfg.InfluxDB, func(err error) {
//	    log.Error("InfluxDB write error", "error", err)
//	})
//	if err != nil {
//	    return err
//	}
//	defer mirror.Close()
//
//	mirror.WriteTelemetry(serial, "light", "activo", params, time.Now())
//
// Writes are batched and never return errors; failures reach the callback.
package influxdb
