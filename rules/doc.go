// Package rules defines the trigger-rule model and the rule compiler.
//
// A TriggerRule carries a single decidable Condition, either a stop arrival
// for a specific trip or a geofence crossing. The compiler translates a
// user's station/trip selection into a normalized rule at creation time;
// rules are immutable afterwards except for deletion.
package rules
