// Package timetable fetches static timetable slices from the feed provider.
//
// The provider is an external collaborator; this package only decodes its
// stop_times records into RealtimeStopTime values used at rule-creation time.
package timetable
