package topology

import (
	"bytes"
	"encoding/json"
)

// text is a descriptive attribute. It never fails to decode: strings are
// taken as-is, other scalars keep their literal form, and objects or arrays
// are dropped.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	case 'n', '{', '[':
		*t = ""
	default:
		*t = text(b)
	}
	return nil
}

// pick returns the first non-empty value.
func pick(values ...text) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

// lenient is a list that is dropped instead of failing when it does not
// decode. It is used for presentation-only detail such as Media.
type lenient[T any] []T

func (l *lenient[T]) UnmarshalJSON(b []byte) error {
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		*l = nil
		return nil
	}
	*l = items
	return nil
}

// optional is a descriptive object that decodes to nil instead of failing
// when the value is null or not an object.
type optional[T any] struct {
	value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.value = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	o.value = &v
	return nil
}

// ============================================================================
// USB FAMILY
// ============================================================================

type usbBusWire struct {
	Name             text        `json:"_name"`
	HostController   text        `json:"host_controller"`
	Driver           text        `json:"Driver"`
	HardwareType     text        `json:"hardware_type"`
	HostHardwareType text        `json:"USBKeyHardwareType"`
	LocationID       text        `json:"location_id"`
	HostLocationID   text        `json:"USBKeyLocationID"`
	PCIDevice        text        `json:"pci_device"`
	PCIRevision      text        `json:"pci_revision"`
	PCIVendor        text        `json:"pci_vendor"`
	Items            []USBDevice `json:"_items"`
}

func (b *USBBus) UnmarshalJSON(data []byte) error {
	var w usbBusWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = USBBus{
		Name:           string(w.Name),
		HostController: pick(w.HostController, w.Driver),
		HardwareType:   pick(w.HardwareType, w.HostHardwareType),
		LocationID:     pick(w.LocationID, w.HostLocationID),
		PCIDevice:      string(w.PCIDevice),
		PCIRevision:    string(w.PCIRevision),
		PCIVendor:      string(w.PCIVendor),
		Items:          w.Items,
	}
	return nil
}

// usbDeviceWire accepts both the legacy SPUSBDataType keys and the
// USBDeviceKey* keys emitted by newer SPUSBHostDataType reports.
type usbDeviceWire struct {
	Name             text           `json:"_name"`
	ProductName      text           `json:"USBDeviceKeyProductName"`
	BCDDevice        text           `json:"bcd_device"`
	BusPower         text           `json:"bus_power"`
	BusPowerUsed     text           `json:"bus_power_used"`
	DeviceSpeed      text           `json:"device_speed"`
	LinkSpeed        text           `json:"USBDeviceKeyLinkSpeed"`
	ExtraCurrentUsed text           `json:"extra_current_used"`
	LocationID       text           `json:"location_id"`
	HostLocationID   text           `json:"USBDeviceKeyLocationID"`
	Manufacturer     text           `json:"manufacturer"`
	HostManufacturer text           `json:"USBDeviceKeyManufacturer"`
	HostVendorName   text           `json:"USBDeviceKeyVendorName"`
	ProductID        text           `json:"product_id"`
	HostProductID    text           `json:"USBDeviceKeyProductID"`
	VendorID         text           `json:"vendor_id"`
	HostVendorID     text           `json:"USBDeviceKeyVendorID"`
	SerialNum        text           `json:"serial_num"`
	HostSerialNum    text           `json:"USBDeviceKeySerialNumber"`
	Media            lenient[Media] `json:"Media"`
	Items            []USBDevice    `json:"_items"`
}

func (d *USBDevice) UnmarshalJSON(data []byte) error {
	var w usbDeviceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = USBDevice{
		Name:             pick(w.Name, w.ProductName),
		BCDDevice:        string(w.BCDDevice),
		BusPower:         string(w.BusPower),
		BusPowerUsed:     string(w.BusPowerUsed),
		DeviceSpeed:      pick(w.DeviceSpeed, w.LinkSpeed),
		ExtraCurrentUsed: string(w.ExtraCurrentUsed),
		LocationID:       pick(w.LocationID, w.HostLocationID),
		Manufacturer:     pick(w.Manufacturer, w.HostManufacturer, w.HostVendorName),
		ProductID:        pick(w.ProductID, w.HostProductID),
		VendorID:         pick(w.VendorID, w.HostVendorID),
		SerialNum:        pick(w.SerialNum, w.HostSerialNum),
		Media:            []Media(w.Media),
		Items:            w.Items,
	}
	return nil
}

type mediaWire struct {
	Name           text            `json:"_name"`
	BSDName        text            `json:"bsd_name"`
	RemovableMedia text            `json:"removable_media"`
	Size           text            `json:"size"`
	SmartStatus    text            `json:"smart_status"`
	Volumes        lenient[Volume] `json:"volumes"`
}

func (m *Media) UnmarshalJSON(data []byte) error {
	var w mediaWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Media{
		Name:           string(w.Name),
		BSDName:        string(w.BSDName),
		RemovableMedia: string(w.RemovableMedia),
		Size:           string(w.Size),
		SmartStatus:    string(w.SmartStatus),
		Volumes:        []Volume(w.Volumes),
	}
	return nil
}

type volumeWire struct {
	Name       text `json:"_name"`
	BSDName    text `json:"bsd_name"`
	FileSystem text `json:"file_system"`
	Size       text `json:"size"`
	FreeSpace  text `json:"free_space"`
	MountPoint text `json:"mount_point"`
	Writable   text `json:"writable"`
}

func (v *Volume) UnmarshalJSON(data []byte) error {
	var w volumeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = Volume{
		Name:       string(w.Name),
		BSDName:    string(w.BSDName),
		FileSystem: string(w.FileSystem),
		Size:       string(w.Size),
		FreeSpace:  string(w.FreeSpace),
		MountPoint: string(w.MountPoint),
		Writable:   string(w.Writable),
	}
	return nil
}

// ============================================================================
// THUNDERBOLT FAMILY
// ============================================================================

type thunderboltBusWire struct {
	Name        text                 `json:"_name"`
	DeviceName  text                 `json:"device_name_key"`
	DomainUUID  text                 `json:"domain_uuid_key"`
	RouteString text                 `json:"route_string_key"`
	SwitchUID   text                 `json:"switch_uid_key"`
	VendorName  text                 `json:"vendor_name_key"`
	Receptacle  optional[Receptacle] `json:"receptacle_1_tag"`
	Items       []ThunderboltDevice  `json:"_items"`
}

func (b *ThunderboltBus) UnmarshalJSON(data []byte) error {
	var w thunderboltBusWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = ThunderboltBus{
		Name:        string(w.Name),
		DeviceName:  string(w.DeviceName),
		DomainUUID:  string(w.DomainUUID),
		RouteString: string(w.RouteString),
		SwitchUID:   string(w.SwitchUID),
		VendorName:  string(w.VendorName),
		Receptacle:  w.Receptacle.value,
		Items:       w.Items,
	}
	return nil
}

type thunderboltDeviceWire struct {
	Name           text                 `json:"_name"`
	DeviceID       text                 `json:"device_id_key"`
	DeviceName     text                 `json:"device_name_key"`
	DeviceRevision text                 `json:"device_revision_key"`
	Mode           text                 `json:"mode_key"`
	RouteString    text                 `json:"route_string_key"`
	SwitchUID      text                 `json:"switch_uid_key"`
	SwitchVersion  text                 `json:"switch_version_key"`
	VendorID       text                 `json:"vendor_id_key"`
	VendorName     text                 `json:"vendor_name_key"`
	Upstream       optional[Receptacle] `json:"receptacle_upstream_ambiguous_tag"`
	Items          []ThunderboltDevice  `json:"_items"`
}

func (d *ThunderboltDevice) UnmarshalJSON(data []byte) error {
	var w thunderboltDeviceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = ThunderboltDevice{
		Name:           pick(w.Name, w.DeviceName),
		DeviceID:       string(w.DeviceID),
		DeviceName:     string(w.DeviceName),
		DeviceRevision: string(w.DeviceRevision),
		Mode:           string(w.Mode),
		RouteString:    string(w.RouteString),
		SwitchUID:      string(w.SwitchUID),
		SwitchVersion:  string(w.SwitchVersion),
		VendorID:       string(w.VendorID),
		VendorName:     string(w.VendorName),
		Upstream:       w.Upstream.value,
		Items:          w.Items,
	}
	return nil
}

type receptacleWire struct {
	CurrentSpeed text `json:"current_speed_key"`
	LinkStatus   text `json:"link_status_key"`
	ReceptacleID text `json:"receptacle_id_key"`
	Status       text `json:"receptacle_status_key"`
}

func (r *Receptacle) UnmarshalJSON(data []byte) error {
	var w receptacleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Receptacle{
		CurrentSpeed: string(w.CurrentSpeed),
		LinkStatus:   string(w.LinkStatus),
		ReceptacleID: string(w.ReceptacleID),
		Status:       string(w.Status),
	}
	return nil
}
