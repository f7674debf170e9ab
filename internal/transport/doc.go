// Package transport bridges the MQTT bus to the automation engine:
// inbound device state reports and raw messages become engine events,
// and the engine's outgoing commands and raw publishes become MQTT
// messages.
package transport
