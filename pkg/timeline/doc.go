// Package timeline keeps the watch's forward-looking list of tide entries in
// step with the cached snapshot. On every wake it either extends the list past
// what was already rendered or rebuilds it from scratch, and it answers the
// renderer's range queries from the same snapshot.
package timeline
