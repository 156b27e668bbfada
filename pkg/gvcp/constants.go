// Package gvcp implements the wire format of the GigE Vision Control
// Protocol (GVCP): request/ack packet encoding, the packet identifier
// sequence, the protocol-defined error and register catalog, and the
// retry/pending-ack exchange state machine (Exchanger) over a Transport.
// Sessions, locking and register-level operations live in package device.
package gvcp

import "time"

// ControlPort is the fixed UDP port GVCP devices listen on.
const ControlPort = 3956

// DataSizeMax is ARV_GVCP_DATA_SIZE_MAX: the largest payload a single
// READ_MEMORY/WRITE_MEMORY exchange may carry.
const DataSizeMax = 536

// BufferSizeMax is ARV_GV_DEVICE_BUFFER_SIZE: large enough for the
// biggest ack the protocol defines (a full read-memory ack).
const BufferSizeMax = HeaderSize + 4 + DataSizeMax

// GVSP (streaming) packet size bounds used by the MTU probe.
const (
	MinStreamPacketSize = 256
	MaxStreamPacketSize = 65536
	UDPOverhead         = 28 // IPv4 + UDP header
)

// Default session tunables.
const (
	DefaultNRetries        = 6
	DefaultTimeout         = 500 * time.Millisecond
	DefaultHeartbeatPeriod = time.Second
	HeartbeatRetryDelay    = 10 * time.Millisecond
	HeartbeatRetryTimeout  = 5 * time.Second
)

// StartPacketID is the identifier the session counter is seeded with, so
// wraparound is exercised early in a session's life.
const StartPacketID uint16 = 65300

// Well-known bootstrap register offsets (device address space).
const (
	RegXMLURL0 = 0x0200
	RegXMLURL1 = 0x0400
	XMLURLSize = 512

	RegDeviceMode       = 0x0004
	DeviceModeBigEndian = 1 << 31

	RegGVCPCapability      = 0x0934
	CapabilityPacketResend = 1 << 7
	CapabilityWriteMemory  = 1 << 1

	RegControlChannelPrivilege = 0x0a00
	PrivilegeControl           = 1 << 1
	PrivilegeExclusive         = 1 << 0

	RegCurrentIPAddress         = 0x0024
	RegCurrentSubnetMask        = 0x0034
	RegCurrentDefaultGateway    = 0x0044
	RegPersistentIPAddress      = 0x064c
	RegPersistentSubnetMask     = 0x065c
	RegPersistentDefaultGateway = 0x066c

	RegIPConfiguration      = 0x0014
	IPConfigLLABit          = 29
	IPConfigDHCPBit         = 30
	IPConfigPersistentIPBit = 31

	RegStreamChannelCount         = 0x0904
	RegTimestampTickFrequencyHigh = 0x093c
	RegTimestampTickFrequencyLow  = 0x0940

	StreamChannelBlockBase   = 0x0d00
	StreamChannelBlockStride = 0x40

	// Offsets within a stream-channel block (added to
	// StreamChannelBlockBase + N*StreamChannelBlockStride).
	SCHostPortOffset    = 0x00
	SCPacketSizeOffset  = 0x04
	SCDestAddressOffset = 0x18
)
