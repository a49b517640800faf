// Package influxdb records library activity in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks. Two
// measurements are written:
//
//	library_activity     one point per create, update or delete (tags kind, action)
//	library_collection   periodic collection sizes (tag site)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // integration switched off
//	}
//	defer client.Close()
//
//	client.WriteActivity("book", "created", 12, time.Now())
//
// Write errors arrive asynchronously through the SetOnError callback.
package influxdb
