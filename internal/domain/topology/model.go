// Package topology models the host device tree reported by the system
// profiler and turns it into flat, identity-keyed device records.
//
// The document has one optional section per bus family. Each section is a
// list of buses (controllers) and each bus carries a tree of devices. USB
// and Thunderbolt trees share a shape but never mix: a USB device only
// nests USB devices and a Thunderbolt device only nests Thunderbolt devices.
//
// Field names follow the profiler's JSON keys. Decoding is lenient: unknown
// keys are ignored, descriptive attributes accept any JSON kind (numbers and
// booleans are kept as text, nested values are dropped), and a missing
// attribute resolves to Unknown through the accessors instead of failing the
// whole document. Only the tree structure itself is strict. Children slices
// keep the nil/empty distinction of the source: a nil Items means the key
// was absent.
package topology

// Unknown is the placeholder returned by accessors for attributes the
// profiler did not report.
const Unknown = "unknown"

// Family identifies a bus technology.
type Family string

const (
	FamilyUSB         Family = "usb"
	FamilyThunderbolt Family = "thunderbolt"
)

// Profiler section keys.
const (
	KeyUSBHost     = "SPUSBHostDataType"
	KeyUSBLegacy   = "SPUSBDataType"
	KeyThunderbolt = "SPThunderboltDataType"
)

// Document is the root of one observation.
type Document struct {
	USB         []USBBus         `json:"SPUSBHostDataType"`
	Thunderbolt []ThunderboltBus `json:"SPThunderboltDataType"`
}

// Roots returns the top-level devices of every bus in both families.
func (d *Document) Roots() []Node {
	if d == nil {
		return nil
	}
	var roots []Node
	for i := range d.USB {
		for j := range d.USB[i].Items {
			roots = append(roots, &d.USB[i].Items[j])
		}
	}
	for i := range d.Thunderbolt {
		for j := range d.Thunderbolt[i].Items {
			roots = append(roots, &d.Thunderbolt[i].Items[j])
		}
	}
	return roots
}

// ============================================================================
// USB FAMILY
// ============================================================================

// USBBus is one USB host controller.
type USBBus struct {
	Name           string      `json:"_name"`
	HostController string      `json:"host_controller,omitempty"`
	HardwareType   string      `json:"hardware_type,omitempty"`
	LocationID     string      `json:"location_id,omitempty"`
	PCIDevice      string      `json:"pci_device,omitempty"`
	PCIRevision    string      `json:"pci_revision,omitempty"`
	PCIVendor      string      `json:"pci_vendor,omitempty"`
	Items          []USBDevice `json:"_items"`
}

// DisplayName returns the bus name or Unknown.
func (b *USBBus) DisplayName() string { return coalesce(b.Name, Unknown) }

// Driver returns the host controller driver name or Unknown.
func (b *USBBus) Driver() string { return coalesce(b.HostController, Unknown) }

// USBDevice is one device on a USB bus. Hubs carry their downstream devices
// in Items.
type USBDevice struct {
	Name             string      `json:"_name"`
	BCDDevice        string      `json:"bcd_device,omitempty"`
	BusPower         string      `json:"bus_power,omitempty"`
	BusPowerUsed     string      `json:"bus_power_used,omitempty"`
	DeviceSpeed      string      `json:"device_speed,omitempty"`
	ExtraCurrentUsed string      `json:"extra_current_used,omitempty"`
	LocationID       string      `json:"location_id,omitempty"`
	Manufacturer     string      `json:"manufacturer,omitempty"`
	ProductID        string      `json:"product_id,omitempty"`
	VendorID         string      `json:"vendor_id,omitempty"`
	SerialNum        string      `json:"serial_num,omitempty"`
	Media            []Media     `json:"Media,omitempty"`
	Items            []USBDevice `json:"_items"`
}

// Media is a storage medium exposed by a USB mass-storage device.
type Media struct {
	Name           string   `json:"_name"`
	BSDName        string   `json:"bsd_name,omitempty"`
	RemovableMedia string   `json:"removable_media,omitempty"`
	Size           string   `json:"size,omitempty"`
	SmartStatus    string   `json:"smart_status,omitempty"`
	Volumes        []Volume `json:"volumes,omitempty"`
}

// Volume is a mounted or mountable partition on a Media.
type Volume struct {
	Name       string `json:"_name"`
	BSDName    string `json:"bsd_name,omitempty"`
	FileSystem string `json:"file_system,omitempty"`
	Size       string `json:"size,omitempty"`
	FreeSpace  string `json:"free_space,omitempty"`
	MountPoint string `json:"mount_point,omitempty"`
	Writable   string `json:"writable,omitempty"`
}

// ============================================================================
// THUNDERBOLT FAMILY
// ============================================================================

// ThunderboltBus is one Thunderbolt/USB4 controller.
type ThunderboltBus struct {
	Name        string              `json:"_name"`
	DeviceName  string              `json:"device_name_key,omitempty"`
	DomainUUID  string              `json:"domain_uuid_key,omitempty"`
	RouteString string              `json:"route_string_key,omitempty"`
	SwitchUID   string              `json:"switch_uid_key,omitempty"`
	VendorName  string              `json:"vendor_name_key,omitempty"`
	Receptacle  *Receptacle         `json:"receptacle_1_tag,omitempty"`
	Items       []ThunderboltDevice `json:"_items"`
}

// DisplayName returns the bus name or Unknown.
func (b *ThunderboltBus) DisplayName() string { return coalesce(b.Name, Unknown) }

// ThunderboltDevice is one device on a Thunderbolt bus. Daisy-chained
// devices are carried in Items.
type ThunderboltDevice struct {
	Name           string              `json:"_name"`
	DeviceID       string              `json:"device_id_key,omitempty"`
	DeviceName     string              `json:"device_name_key,omitempty"`
	DeviceRevision string              `json:"device_revision_key,omitempty"`
	Mode           string              `json:"mode_key,omitempty"`
	RouteString    string              `json:"route_string_key,omitempty"`
	SwitchUID      string              `json:"switch_uid_key,omitempty"`
	SwitchVersion  string              `json:"switch_version_key,omitempty"`
	VendorID       string              `json:"vendor_id_key,omitempty"`
	VendorName     string              `json:"vendor_name_key,omitempty"`
	Upstream       *Receptacle         `json:"receptacle_upstream_ambiguous_tag,omitempty"`
	Items          []ThunderboltDevice `json:"_items"`
}

// Receptacle describes a Thunderbolt port and its negotiated link. Each
// field may be missing independently.
type Receptacle struct {
	CurrentSpeed string `json:"current_speed_key,omitempty"`
	LinkStatus   string `json:"link_status_key,omitempty"`
	ReceptacleID string `json:"receptacle_id_key,omitempty"`
	Status       string `json:"receptacle_status_key,omitempty"`
}

func coalesce[T ~string](v T, def T) T {
	if v == "" {
		return def
	}
	return v
}
