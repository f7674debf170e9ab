package mqtt

import "fmt"

// Topic hierarchy:
//
//	hearth/state/<device-id>     device state reports (JSON)
//	hearth/command/<device-id>   outgoing device commands (JSON)
//	hearth/system/status         daemon online/offline (LWT, retained)
const topicPrefix = "hearth"

// Topics builds topic strings for the hearth hierarchy. Zero value is
// ready to use:
//
//	stateTopic := mqtt.Topics{}.DeviceState("lamp-living")
type Topics struct{}

// DeviceState returns the state-report topic for a device.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", topicPrefix, deviceID)
}

// DeviceCommand returns the command topic for a device.
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", topicPrefix, deviceID)
}

// SystemStatus returns the daemon status topic, also used as the LWT.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// AllDeviceStates returns a pattern matching every device state report.
func (Topics) AllDeviceStates() string {
	return topicPrefix + "/state/+"
}
