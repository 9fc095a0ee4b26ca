package topology

// Device is the flattened, diffable record of one DeviceNode. Devices are
// values and are never mutated after the flattener builds them.
type Device struct {
	Identity         string `json:"identity"`
	DisplayName      string `json:"display_name"`
	SpeedDescription string `json:"speed"`
	Family           Family `json:"family"`
	Vendor           string `json:"vendor"`
	// Mode and LinkStatus are only set for Thunderbolt devices.
	Mode       string `json:"mode,omitempty"`
	LinkStatus string `json:"link_status,omitempty"`
	// Stable is false when Identity is a generated token. Such a device can
	// never match a device from another scan.
	Stable bool `json:"stable"`
	Depth  int  `json:"depth"`
}

// Line renders the device as "{name}: {speed}".
func (d Device) Line() string {
	return d.DisplayName + ": " + d.SpeedDescription
}

// Identities returns the identity of every device in order.
func Identities(devices []Device) []string {
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.Identity
	}
	return ids
}
