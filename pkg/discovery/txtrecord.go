package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *ServiceInfo) TXTRecordMap {
	txt := make(TXTRecordMap)
	txt[TXTKeyState] = strconv.Itoa(info.Committed)
	txt[TXTKeySupported] = encodeIdentifiers(info.Supported)
	txt[TXTKeyVersion] = strconv.Itoa(TXTVersion)

	if name := info.CommittedName; name != "" {
		if len(name) > MaxTXTValueLen {
			name = name[:MaxTXTValueLen]
		}
		txt[TXTKeyStateName] = name
	}
	return txt
}

// DecodeTXT parses TXT records into a Service. Instance and address fields
// are left empty.
func DecodeTXT(txt TXTRecordMap) (*Service, error) {
	svc := &Service{}

	st, ok := txt[TXTKeyState]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyState)
	}
	committed, err := strconv.Atoi(st)
	if err != nil || committed < -1 {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyState, st)
	}
	svc.Committed = committed

	ss, ok := txt[TXTKeySupported]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySupported)
	}
	svc.Supported, err = parseIdentifiers(ss)
	if err != nil {
		return nil, err
	}

	svc.Version = TXTVersion
	if v, ok := txt[TXTKeyVersion]; ok {
		svc.Version, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyVersion, v)
		}
	}

	svc.CommittedName = txt[TXTKeyStateName]
	return svc, nil
}

// encodeIdentifiers formats identifiers as a sorted comma-separated list.
// Entries that would overflow a TXT string are dropped.
func encodeIdentifiers(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	var b strings.Builder
	for i, id := range sorted {
		s := strconv.Itoa(id)
		if b.Len()+len(s)+1 > MaxTXTValueLen {
			break
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s)
	}
	return b.String()
}

// parseIdentifiers parses a comma-separated identifier list.
func parseIdentifiers(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeySupported, s)
		}
		out = append(out, id)
	}
	return out, nil
}

// TXTRecordsToStrings converts a TXT record map to "key=value" strings in
// key order.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(txt))
	for _, k := range keys {
		out = append(out, k+"="+txt[k])
	}
	return out
}

// StringsToTXTRecords converts "key=value" strings to a map. Strings
// without '=' are boolean keys with an empty value.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		if k, v, ok := strings.Cut(s, "="); ok {
			txt[k] = v
		} else if s != "" {
			txt[s] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks an instance name against DNS label rules.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidInstanceName)
	}
	if len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidInstanceName, MaxInstanceNameLen)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character", ErrInvalidInstanceName)
		}
	}
	return nil
}
