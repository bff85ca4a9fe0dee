// Package influxdb writes feeder telemetry to InfluxDB v2.
//
// Points are tagged with the device serial and queued on the client's
// non-blocking write API; batching follows influxdb.batch_size and
// influxdb.flush_interval. Asynchronous failures arrive through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteFeederMetric(influxdb.MeasurementWifi, "AF0123", "rssi", -61)
package influxdb
