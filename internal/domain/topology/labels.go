package topology

import (
	"fmt"
	"strings"
)

// Labels holds the human-readable strings used to describe devices and
// changes. Lookups never fail: an unmapped raw value is rendered with the
// table's unknown suffix or passed through unchanged.
type Labels struct {
	Language string

	// USBSpeeds maps device_speed values to labels.
	USBSpeeds map[string]string
	// UnknownSpeedFormat renders an unmapped USB speed; it receives the raw value.
	UnknownSpeedFormat string

	// LinkSpeeds maps Thunderbolt current_speed_key values. Unmapped values
	// pass through.
	LinkSpeeds map[string]string
	// MissingLinkSpeed is used when a Thunderbolt device reports no speed.
	MissingLinkSpeed string

	ReceptacleStatuses map[string]string
	Modes              map[string]string

	Title     string
	Added     string
	Removed   string
	Unchanged string
}

// ChineseLabels returns the default label table.
func ChineseLabels() *Labels {
	return &Labels{
		Language: "zh",
		USBSpeeds: map[string]string{
			"low_speed":           "1.5 Mbit/s (USB 1.0 低速)",
			"full_speed":          "12 Mbit/s (USB 1.1 全速)",
			"high_speed":          "480 Mbit/s (USB 2.0 高速)",
			"super_speed":         "5 Gbit/s (USB 3.0 超高速)",
			"super_speed_plus":    "10 Gbit/s (USB 3.1 超高速+)",
			"super_speed_plus_20": "20 Gbit/s (USB 3.2 超高速+ 20)",
		},
		UnknownSpeedFormat: "%s (未知)",
		LinkSpeeds: map[string]string{
			"Up to 20 Gb/s": "最高20Gb/s",
			"Up to 40 Gb/s": "最高40Gb/s",
		},
		MissingLinkSpeed: "未知",
		ReceptacleStatuses: map[string]string{
			"receptacle_connected":            "已连接",
			"receptacle_no_devices_connected": "未连接",
		},
		Modes: map[string]string{
			"usb_four":          "USB 4",
			"thunderbolt_three": "雷电 3",
			"thunderbolt_four":  "雷电 4",
		},
		Title:     "USB 设备变化",
		Added:     "添加了设备：",
		Removed:   "移除了设备：",
		Unchanged: "没有变化",
	}
}

// EnglishLabels returns the English label table.
func EnglishLabels() *Labels {
	return &Labels{
		Language: "en",
		USBSpeeds: map[string]string{
			"low_speed":           "1.5 Mbit/s (USB 1.0 Low Speed)",
			"full_speed":          "12 Mbit/s (USB 1.1 Full Speed)",
			"high_speed":          "480 Mbit/s (USB 2.0 High Speed)",
			"super_speed":         "5 Gbit/s (USB 3.0 SuperSpeed)",
			"super_speed_plus":    "10 Gbit/s (USB 3.1 SuperSpeed+)",
			"super_speed_plus_20": "20 Gbit/s (USB 3.2 SuperSpeed+ 20)",
		},
		UnknownSpeedFormat: "%s (unknown)",
		LinkSpeeds: map[string]string{
			"Up to 20 Gb/s": "up to 20 Gb/s",
			"Up to 40 Gb/s": "up to 40 Gb/s",
		},
		MissingLinkSpeed: "unknown",
		ReceptacleStatuses: map[string]string{
			"receptacle_connected":            "connected",
			"receptacle_no_devices_connected": "not connected",
		},
		Modes: map[string]string{
			"usb_four":          "USB 4",
			"thunderbolt_three": "Thunderbolt 3",
			"thunderbolt_four":  "Thunderbolt 4",
		},
		Title:     "USB device change",
		Added:     "Devices added:",
		Removed:   "Devices removed:",
		Unchanged: "No change",
	}
}

// LabelsFor returns the table for a language code, defaulting to Chinese.
func LabelsFor(language string) *Labels {
	if language == "en" {
		return EnglishLabels()
	}
	return ChineseLabels()
}

// USBSpeed renders a device_speed value, ignoring case. A missing value is
// treated as the raw string Unknown.
func (l *Labels) USBSpeed(raw string) string {
	raw = coalesce(raw, Unknown)
	if label, ok := l.USBSpeeds[strings.ToLower(raw)]; ok {
		return label
	}
	return fmt.Sprintf(l.UnknownSpeedFormat, raw)
}

// LinkSpeed renders a Thunderbolt current_speed_key value.
func (l *Labels) LinkSpeed(raw string) string {
	if raw == "" {
		return l.MissingLinkSpeed
	}
	if label, ok := l.LinkSpeeds[raw]; ok {
		return label
	}
	return raw
}

// ReceptacleStatus renders a receptacle_status_key value. A missing value is
// rendered as Unknown.
func (l *Labels) ReceptacleStatus(raw string) string {
	if label, ok := l.ReceptacleStatuses[raw]; ok {
		return label
	}
	return coalesce(raw, Unknown)
}

// Mode renders a mode_key value.
func (l *Labels) Mode(raw string) string {
	if label, ok := l.Modes[raw]; ok {
		return label
	}
	return coalesce(raw, Unknown)
}
