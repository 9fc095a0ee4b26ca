package topology

// Node is the behaviour shared by every device variant. A Node only ever
// returns children of its own family.
type Node interface {
	Family() Family
	DisplayName() string
	Vendor() string
	// StableKey returns the best hardware identifier the device reports, or
	// "" when it has none.
	StableKey() string
	SpeedDescription(l *Labels) string
	Children() []Node
}

var (
	_ Node = (*USBDevice)(nil)
	_ Node = (*ThunderboltDevice)(nil)
)

func (d *USBDevice) Family() Family      { return FamilyUSB }
func (d *USBDevice) DisplayName() string { return coalesce(d.Name, Unknown) }
func (d *USBDevice) Vendor() string      { return coalesce(d.Manufacturer, Unknown) }

// StableKey prefers the serial number over the location id. The location
// id identifies a port rather than a device, so it only survives as long as
// the device stays plugged into the same port.
func (d *USBDevice) StableKey() string {
	if d.SerialNum != "" {
		return d.SerialNum
	}
	return d.LocationID
}

func (d *USBDevice) SpeedDescription(l *Labels) string { return l.USBSpeed(d.DeviceSpeed) }

func (d *USBDevice) Children() []Node {
	if len(d.Items) == 0 {
		return nil
	}
	nodes := make([]Node, len(d.Items))
	for i := range d.Items {
		nodes[i] = &d.Items[i]
	}
	return nodes
}

func (d *ThunderboltDevice) Family() Family      { return FamilyThunderbolt }
func (d *ThunderboltDevice) DisplayName() string { return coalesce(d.Name, Unknown) }
func (d *ThunderboltDevice) Vendor() string      { return coalesce(d.VendorName, Unknown) }

// StableKey prefers device_id_key and falls back to the switch UID.
func (d *ThunderboltDevice) StableKey() string {
	if d.DeviceID != "" {
		return d.DeviceID
	}
	return d.SwitchUID
}

func (d *ThunderboltDevice) SpeedDescription(l *Labels) string {
	if d.Upstream == nil {
		return l.LinkSpeed("")
	}
	return l.LinkSpeed(d.Upstream.CurrentSpeed)
}

// Link renders the negotiated mode and the upstream receptacle status. The
// status is empty when the device reports no upstream receptacle.
func (d *ThunderboltDevice) Link(l *Labels) (mode, status string) {
	mode = l.Mode(d.Mode)
	if d.Upstream != nil {
		status = l.ReceptacleStatus(d.Upstream.Status)
	}
	return mode, status
}

func (d *ThunderboltDevice) Children() []Node {
	if len(d.Items) == 0 {
		return nil
	}
	nodes := make([]Node, len(d.Items))
	for i := range d.Items {
		nodes[i] = &d.Items[i]
	}
	return nodes
}
