package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementActivity   = "library_activity"
	measurementCollection = "library_collection"
)

// activityPoint builds the point recorded for one store mutation.
func activityPoint(kind, action string, id int, at time.Time) *write.Point {
	tags := map[string]string{
		"kind":   kind,
		"action": action,
	}
	fields := map[string]any{
		"count": 1,
	}
	if id > 0 {
		fields["id"] = strconv.Itoa(id)
	}
	return write.NewPoint(measurementActivity, tags, fields, at)
}

// collectionPoint builds the point recorded for a snapshot of collection sizes.
func collectionPoint(site string, books, members, loans, onLoan int, at time.Time) *write.Point {
	return write.NewPoint(
		measurementCollection,
		map[string]string{"site": site},
		map[string]any{
			"books":   books,
			"members": members,
			"loans":   loans,
			"on_loan": onLoan,
		},
		at,
	)
}

// WriteActivity records one create, update or delete.
//
// Example:
//
//	client.WriteActivity("loan", "created", 7, time.Now())
func (c *Client) WriteActivity(kind, action string, id int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(activityPoint(kind, action, id, at))
}

// WriteCollectionSizes records the current number of records per collection.
func (c *Client) WriteCollectionSizes(site string, books, members, loans, onLoan int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(collectionPoint(site, books, members, loans, onLoan, time.Now()))
}

// WritePoint writes a custom point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
