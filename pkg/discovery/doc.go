// Package discovery advertises a running emulator over mDNS/DNS-SD.
//
// A cbmock instance registers one service of type _cbmock._tcp in the
// local. domain. The service port is the HTTP control port; TXT records
// carry the version and the bucket layout:
//
//	ver=1.5.25
//	buckets=default:4,other:2
//	path=/mock
//
// Test tooling on the same link can find emulators with Browse instead of
// being told a port.
package discovery
