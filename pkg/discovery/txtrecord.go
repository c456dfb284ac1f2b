package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeBridgeTXT creates TXT records for a bridge.
func EncodeBridgeTXT(info *BridgeInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyPath] = info.Path
	txt[TXTKeyID] = info.ObservationID

	// Optional fields
	if len(info.Formats) > 0 {
		txt[TXTKeyFormats] = strings.Join(info.Formats, ",")
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}

	return txt
}

// DecodeBridgeTXT parses TXT records of a bridge.
func DecodeBridgeTXT(txt TXTRecordMap) (*BridgeInfo, error) {
	info := &BridgeInfo{}

	var ok bool
	info.Path, ok = txt[TXTKeyPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPath)
	}
	if !strings.HasPrefix(info.Path, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, info.Path)
	}

	info.ObservationID, ok = txt[TXTKeyID]
	if !ok || info.ObservationID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}

	if f, ok := txt[TXTKeyFormats]; ok && f != "" {
		info.Formats = strings.Split(f, ",")
	} else {
		info.Formats = append([]string(nil), DefaultFormats...)
	}
	info.Name = txt[TXTKeyName]

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found {
			txt[k] = v
		} else if k != "" {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}
