// Package tides holds the tide model shared by the phone and the watch: water
// level samples, the station catalog, and the Snapshot that both devices
// persist and exchange. Classify derives the tide situation of every sample
// from its neighbors.
package tides
