// Package audit records who changed what in the library.
//
// Entries live in the audit_logs table. API handlers hand entries to a
// Recorder, which writes them serially in the background and drops them
// when its queue is full so requests never wait on the audit trail.
package audit
