// Package alert forwards device threshold warnings to the device owner.
//
// Devices enforce their own thresholds and publish a warning on
// dt/farm/house/<attribute>/warning when a reading leaves the range. The
// Forwarder resolves the device to its owner and hands a rendered
// Notification to a Notifier: SMTP in production, the log otherwise.
//
// Every warning produces one notification. Nothing is deduplicated.
package alert
