// Package device provides the device registry: definitions loaded from
// YAML, a live state cache fed by the transport, and entity resolution
// from canonical property names to device-specific wire properties.
package device
