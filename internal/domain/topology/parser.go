package topology

import (
	"bytes"
	"encoding/json"
	"fmt"

	"usbspeed/internal/errors"
)

// Parse decodes one profiler document. At least one family section must be
// present; each present section must be a list of buses (or null).
// Anything that breaks the tree structure is reported as a malformed
// topology error, while missing or oddly typed attributes are tolerated.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.NewMalformedTopology("empty topology document", nil)
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, errors.NewMalformedTopology("topology document is not a JSON object", err)
	}

	doc := &Document{}
	found := false

	for _, key := range []string{KeyUSBHost, KeyUSBLegacy} {
		raw, ok := sections[key]
		if !ok {
			continue
		}
		found = true
		var buses []USBBus
		if err := json.Unmarshal(raw, &buses); err != nil {
			return nil, errors.NewMalformedTopology(fmt.Sprintf("invalid %s section", key), err)
		}
		doc.USB = append(doc.USB, buses...)
	}

	if raw, ok := sections[KeyThunderbolt]; ok {
		found = true
		if err := json.Unmarshal(raw, &doc.Thunderbolt); err != nil {
			return nil, errors.NewMalformedTopology(fmt.Sprintf("invalid %s section", KeyThunderbolt), err)
		}
	}

	if !found {
		return nil, errors.NewMalformedTopology("topology document has no device sections", nil)
	}
	return doc, nil
}
