package discovery

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Service constants.
const (
	ServiceType = "_cbmock._tcp"
	Domain      = "local."

	// DefaultTTL is the record TTL used when AdvertiserConfig.TTL is zero.
	DefaultTTL = 120 * time.Second
)

// TXT record keys.
const (
	TXTKeyVersion = "ver"
	TXTKeyBuckets = "buckets"
	TXTKeyPath    = "path"
)

// Errors returned by TXT decoding.
var (
	ErrMissingRequired = errors.New("missing required TXT record")
	ErrInvalidBuckets  = errors.New("invalid buckets TXT record")
	ErrInvalidPort     = errors.New("invalid service port")
)

// BucketInfo describes one advertised bucket.
type BucketInfo struct {
	Name  string
	Nodes int
}

// InstanceInfo is what an emulator advertises about itself.
type InstanceInfo struct {
	// Name is the DNS-SD instance name. Empty means "cbmock-<port>".
	Name    string
	Port    int
	Version string
	Path    string
	Buckets []BucketInfo
}

// InstanceName returns the effective instance name.
func (i *InstanceInfo) InstanceName() string {
	if i.Name != "" {
		return i.Name
	}
	return fmt.Sprintf("cbmock-%d", i.Port)
}

// Validate checks the fields needed for registration.
func (i *InstanceInfo) Validate() error {
	if i.Port <= 0 || i.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, i.Port)
	}
	for _, b := range i.Buckets {
		if b.Name == "" || strings.ContainsAny(b.Name, ":,") || b.Nodes < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidBuckets, b.Name)
		}
	}
	return nil
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT builds the TXT records for info.
func EncodeTXT(info *InstanceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyVersion: info.Version,
		TXTKeyBuckets: encodeBuckets(info.Buckets),
	}
	if info.Path != "" {
		txt[TXTKeyPath] = info.Path
	}
	return txt
}

// DecodeTXT parses TXT records into an InstanceInfo. Name and Port are
// not part of the TXT data and are left zero.
func DecodeTXT(txt TXTRecordMap) (*InstanceInfo, error) {
	info := &InstanceInfo{}

	var ok bool
	info.Version, ok = txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}

	bStr, ok := txt[TXTKeyBuckets]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyBuckets)
	}
	buckets, err := parseBuckets(bStr)
	if err != nil {
		return nil, err
	}
	info.Buckets = buckets
	info.Path = txt[TXTKeyPath]

	return info, nil
}

func encodeBuckets(buckets []BucketInfo) string {
	parts := make([]string, len(buckets))
	for i, b := range buckets {
		parts[i] = b.Name + ":" + strconv.Itoa(b.Nodes)
	}
	return strings.Join(parts, ",")
}

func parseBuckets(s string) ([]BucketInfo, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]BucketInfo, 0, len(parts))
	for _, p := range parts {
		name, count, found := strings.Cut(p, ":")
		if !found || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBuckets, p)
		}
		n, err := strconv.Atoi(count)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBuckets, p)
		}
		out = append(out, BucketInfo{Name: name, Nodes: n})
	}
	return out, nil
}

// TXTRecordsToStrings converts a TXT map to the "key=value" form zeroconf
// expects. Keys are sorted so registrations are stable.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+txt[k])
	}
	return out
}

// StringsToTXTRecords parses "key=value" strings. Entries without '=' are
// kept as keys with an empty value.
func StringsToTXTRecords(records []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(records))
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		if k == "" {
			continue
		}
		txt[k] = v
	}
	return txt
}
