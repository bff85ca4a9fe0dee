// Package feeding keeps the feeding schedule and follows feeds as the
// device reports them.
//
// The server owns the schedule: a Synchronizer renders the PlanSet for
// FEEDING_PLAN_SERVICE pushes and GET_FEEDING_PLAN_EVENT replies, stamping
// every plan with the same sync time. A Tracker turns GRAIN_OUTPUT_EVENT
// steps into progress changes, start and end records, and mismatch errors.
//
// Neither type locks; the session engine serialises access.
package feeding
