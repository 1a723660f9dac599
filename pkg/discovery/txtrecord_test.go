package discovery

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTXT(t *testing.T) {
	info := &ServiceInfo{
		InstanceName:  "kitchen-display",
		Port:          8650,
		Committed:     2,
		CommittedName: "TENT",
		Supported:     []int{2, 0, 1},
	}

	txt := EncodeTXT(info)
	assert.Equal(t, "2", txt[TXTKeyState])
	assert.Equal(t, "TENT", txt[TXTKeyStateName])
	assert.Equal(t, "0,1,2", txt[TXTKeySupported])
	assert.Equal(t, "1", txt[TXTKeyVersion])

	svc, err := DecodeTXT(txt)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Committed)
	assert.Equal(t, "TENT", svc.CommittedName)
	assert.Equal(t, []int{0, 1, 2}, svc.Supported)
	assert.Equal(t, TXTVersion, svc.Version)
}

func TestEncodeTXTAbsentState(t *testing.T) {
	txt := EncodeTXT(&ServiceInfo{Committed: -1})
	assert.Equal(t, "-1", txt[TXTKeyState])
	assert.Equal(t, "", txt[TXTKeySupported])
	_, ok := txt[TXTKeyStateName]
	assert.False(t, ok)

	svc, err := DecodeTXT(txt)
	require.NoError(t, err)
	assert.Equal(t, -1, svc.Committed)
	assert.Empty(t, svc.Supported)
}

func TestEncodeTXTTruncatesLongValues(t *testing.T) {
	ids := make([]int, 200)
	for i := range ids {
		ids[i] = 1000 + i
	}
	txt := EncodeTXT(&ServiceInfo{
		Committed:     1000,
		CommittedName: strings.Repeat("x", 400),
		Supported:     ids,
	})
	assert.Len(t, txt[TXTKeyStateName], MaxTXTValueLen)
	assert.LessOrEqual(t, len(txt[TXTKeySupported]), MaxTXTValueLen)

	svc, err := DecodeTXT(txt)
	require.NoError(t, err)
	assert.Equal(t, 1000, svc.Supported[0])
}

func TestDecodeTXTErrors(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
		want error
	}{
		{"missing state", TXTRecordMap{TXTKeySupported: "0"}, ErrMissingRequired},
		{"missing supported", TXTRecordMap{TXTKeyState: "0"}, ErrMissingRequired},
		{"bad state", TXTRecordMap{TXTKeyState: "x", TXTKeySupported: "0"}, ErrInvalidTXTRecord},
		{"state below sentinel", TXTRecordMap{TXTKeyState: "-2", TXTKeySupported: "0"}, ErrInvalidTXTRecord},
		{"bad supported", TXTRecordMap{TXTKeyState: "0", TXTKeySupported: "0,a"}, ErrInvalidTXTRecord},
		{"negative supported", TXTRecordMap{TXTKeyState: "0", TXTKeySupported: "-1"}, ErrInvalidTXTRecord},
		{"bad version", TXTRecordMap{TXTKeyState: "0", TXTKeySupported: "0", TXTKeyVersion: "v1"}, ErrInvalidTXTRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTXT(tt.txt)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestTXTStringsRoundTrip(t *testing.T) {
	txt := TXTRecordMap{TXTKeyVersion: "1", TXTKeyState: "0", TXTKeySupported: "0,1"}
	strs := TXTRecordsToStrings(txt)
	assert.Equal(t, []string{"ss=0,1", "st=0", "v=1"}, strs)
	assert.Equal(t, txt, StringsToTXTRecords(strs))

	parsed := StringsToTXTRecords([]string{"flag", "", "k=a=b"})
	assert.Equal(t, TXTRecordMap{"flag": "", "k": "a=b"}, parsed)
}

func TestValidateInstanceName(t *testing.T) {
	assert.NoError(t, ValidateInstanceName("Kitchen Display"))
	assert.ErrorIs(t, ValidateInstanceName(""), ErrInvalidInstanceName)
	assert.ErrorIs(t, ValidateInstanceName(strings.Repeat("a", 64)), ErrInvalidInstanceName)
	assert.ErrorIs(t, ValidateInstanceName("bad\nname"), ErrInvalidInstanceName)
}

func TestServiceEntryToService(t *testing.T) {
	entry := &ServiceEntry{
		Instance: "kitchen-display",
		Host:     "kitchen.local.",
		Port:     8650,
		Text:     []string{"st=1", "sn=OTHER", "ss=0,1", "v=1"},
		Addrs:    []string{"192.168.1.10", "fe80::1"},
	}

	svc, err := entry.ToService()
	require.NoError(t, err)
	assert.Equal(t, "kitchen-display", svc.InstanceName)
	assert.Equal(t, "kitchen.local.", svc.Host)
	assert.Equal(t, uint16(8650), svc.Port)
	assert.Equal(t, 1, svc.Committed)
	assert.Equal(t, "OTHER", svc.CommittedName)
	assert.Equal(t, []int{0, 1}, svc.Supported)
	assert.Equal(t, []string{"192.168.1.10", "fe80::1"}, svc.Addresses)

	_, err = (&ServiceEntry{Text: []string{"v=1"}}).ToService()
	assert.ErrorIs(t, err, ErrMissingRequired)
}

func TestMergeAddresses(t *testing.T) {
	got := mergeAddresses([]string{"a", "b"}, []string{"b", "c", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestServiceInfoClone(t *testing.T) {
	info := &ServiceInfo{Supported: []int{0, 1}}
	cp := info.Clone()
	cp.Supported[0] = 9
	assert.Equal(t, 0, info.Supported[0])
}
