// Package syncer keeps one device's tide snapshot current and mirrors it to
// the paired device.
//
// A Coordinator refreshes its snapshot from a Fetcher, persists it, tells
// local observers, and sends it over a link.Link. Snapshots received from the
// peer replace local state outright. There is no merge and no ordering between
// devices: whichever write lands last, a local refresh or a remote delivery,
// is what both the store and the in-memory snapshot hold.
package syncer
