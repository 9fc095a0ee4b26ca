// Package topologytest provides builders for topology documents used in
// tests across packages.
package topologytest

import (
	"encoding/json"

	"usbspeed/internal/domain/topology"
)

// USBDeviceBuilder helps create USB devices with default values
type USBDeviceBuilder struct {
	device topology.USBDevice
}

func NewUSBDevice(name string) *USBDeviceBuilder {
	return &USBDeviceBuilder{device: topology.USBDevice{
		Name:         name,
		DeviceSpeed:  "high_speed",
		Manufacturer: "Test Vendor",
		VendorID:     "0x05ac",
		ProductID:    "0x1234",
	}}
}

func (b *USBDeviceBuilder) WithSerial(serial string) *USBDeviceBuilder {
	b.device.SerialNum = serial
	return b
}

func (b *USBDeviceBuilder) WithLocation(locationID string) *USBDeviceBuilder {
	b.device.LocationID = locationID
	return b
}

func (b *USBDeviceBuilder) WithSpeed(speed string) *USBDeviceBuilder {
	b.device.DeviceSpeed = speed
	return b
}

func (b *USBDeviceBuilder) WithManufacturer(manufacturer string) *USBDeviceBuilder {
	b.device.Manufacturer = manufacturer
	return b
}

func (b *USBDeviceBuilder) WithChildren(children ...*USBDeviceBuilder) *USBDeviceBuilder {
	b.device.Items = make([]topology.USBDevice, 0, len(children))
	for _, c := range children {
		b.device.Items = append(b.device.Items, c.Build())
	}
	return b
}

func (b *USBDeviceBuilder) Build() topology.USBDevice {
	return b.device
}

// ThunderboltDeviceBuilder helps create Thunderbolt devices with default values
type ThunderboltDeviceBuilder struct {
	device topology.ThunderboltDevice
}

func NewThunderboltDevice(name string) *ThunderboltDeviceBuilder {
	return &ThunderboltDeviceBuilder{device: topology.ThunderboltDevice{
		Name:       name,
		VendorName: "Test Vendor",
		VendorID:   "0x1",
		Mode:       "thunderbolt_three",
	}}
}

func (b *ThunderboltDeviceBuilder) WithDeviceID(id string) *ThunderboltDeviceBuilder {
	b.device.DeviceID = id
	return b
}

func (b *ThunderboltDeviceBuilder) WithSpeed(speed string) *ThunderboltDeviceBuilder {
	b.device.Upstream = &topology.Receptacle{
		CurrentSpeed: speed,
		Status:       "receptacle_connected",
	}
	return b
}

func (b *ThunderboltDeviceBuilder) WithChildren(children ...*ThunderboltDeviceBuilder) *ThunderboltDeviceBuilder {
	b.device.Items = make([]topology.ThunderboltDevice, 0, len(children))
	for _, c := range children {
		b.device.Items = append(b.device.Items, c.Build())
	}
	return b
}

func (b *ThunderboltDeviceBuilder) Build() topology.ThunderboltDevice {
	return b.device
}

// DocumentBuilder assembles a document with one bus per family.
type DocumentBuilder struct {
	usb         []topology.USBDevice
	thunderbolt []topology.ThunderboltDevice
}

func NewDocument() *DocumentBuilder {
	return &DocumentBuilder{}
}

func (b *DocumentBuilder) WithUSB(devices ...*USBDeviceBuilder) *DocumentBuilder {
	for _, d := range devices {
		b.usb = append(b.usb, d.Build())
	}
	return b
}

func (b *DocumentBuilder) WithThunderbolt(devices ...*ThunderboltDeviceBuilder) *DocumentBuilder {
	for _, d := range devices {
		b.thunderbolt = append(b.thunderbolt, d.Build())
	}
	return b
}

func (b *DocumentBuilder) Build() *topology.Document {
	doc := &topology.Document{
		USB: []topology.USBBus{{
			Name:           "USB31Bus",
			HostController: "AppleUSBXHCITR",
			Items:          b.usb,
		}},
	}
	if len(b.thunderbolt) > 0 {
		doc.Thunderbolt = []topology.ThunderboltBus{{
			Name:       "thunderbolt_bus",
			VendorName: "Apple Inc.",
			Items:      b.thunderbolt,
		}}
	}
	return doc
}

// JSON renders the document the way the profiler would.
func (b *DocumentBuilder) JSON() []byte {
	data, err := json.Marshal(b.Build())
	if err != nil {
		panic(err)
	}
	return data
}
