package device

import "fmt"

// SchemaNode is one entry of the fixed default GenICam catalog applied
// when a device reports no usable XML URL.
type SchemaNode struct {
	Name string
	XML  string
}

func intRegNode(name string, address uint32, length int) SchemaNode {
	return SchemaNode{Name: name, XML: fmt.Sprintf(
		`<IntReg Name="%s"><Address>0x%x</Address><Length>%d</Length><AccessMode>RW</AccessMode><pPort>Device</pPort></IntReg>`,
		name, address, length)}
}

func maskedBitNode(name string, address uint32, bit int) SchemaNode {
	return SchemaNode{Name: name, XML: fmt.Sprintf(
		`<MaskedIntReg Name="%s"><Address>0x%x</Address><Length>4</Length><AccessMode>RW</AccessMode><pPort>Device</pPort><LSB>%d</LSB><MSB>%d</MSB><Sign>Unsigned</Sign></MaskedIntReg>`,
		name, address, bit, bit)}
}

func stringRegNode(name string, address uint32, length int) SchemaNode {
	return SchemaNode{Name: name, XML: fmt.Sprintf(
		`<StringReg Name="%s"><Address>0x%x</Address><Length>%d</Length><AccessMode>RO</AccessMode><pPort>Device</pPort></StringReg>`,
		name, address, length)}
}

// DefaultSchemaNodes is the fixed catalog of registers a GigE Vision
// device is guaranteed to expose even without a GenICam document:
// IP configuration, identity strings, stream channel count, timestamp
// tick frequency and the per-channel stream control block.
var DefaultSchemaNodes = []SchemaNode{
	maskedBitNode("GevCurrentIPConfigurationLLA", 0x0014, 29),
	maskedBitNode("GevCurrentIPConfigurationDHCP", 0x0014, 30),
	maskedBitNode("GevCurrentIPConfigurationPersistentIP", 0x0014, 31),

	stringRegNode("DeviceVendorName", 0x0048, 32),
	stringRegNode("DeviceModelName", 0x0068, 32),
	stringRegNode("DeviceVersion", 0x0088, 32),
	stringRegNode("DeviceManufacturerInfo", 0x00a8, 48),
	stringRegNode("DeviceID", 0x00d8, 16),

	intRegNode("GevCurrentIPAddress", 0x0024, 4),
	intRegNode("GevCurrentSubnetMask", 0x0034, 4),
	intRegNode("GevCurrentDefaultGateway", 0x0044, 4),
	intRegNode("GevPersistentIPAddress", 0x064c, 4),
	intRegNode("GevPersistentSubnetMask", 0x065c, 4),
	intRegNode("GevPersistentDefaultGateway", 0x066c, 4),

	intRegNode("GevStreamChannelCount", 0x0904, 4),

	{Name: "GevTimestampTickFrequency", XML: `<IntSwissKnife Name="GevTimestampTickFrequency">` +
		`<pVariable Name="HIGH">GevTimestampTickFrequencyHigh</pVariable>` +
		`<pVariable Name="LOW">GevTimestampTickFrequencyLow</pVariable>` +
		`<Formula>(HIGH&lt;&lt;32)|LOW</Formula></IntSwissKnife>`},
	intRegNode("GevTimestampTickFrequencyHigh", 0x093c, 4),
	intRegNode("GevTimestampTickFrequencyLow", 0x0940, 4),

	{Name: "GevSCPAddrCalc", XML: `<IntSwissKnife Name="GevSCPAddrCalc">` +
		`<pVariable Name="SEL">GevStreamChannelSelector</pVariable>` +
		`<Formula>SEL*0x40</Formula></IntSwissKnife>`},

	{Name: "GevSCPHostPort", XML: `<MaskedIntReg Name="GevSCPHostPort">` +
		`<pAddress>GevSCPAddrCalc</pAddress><Offset>0x0d00</Offset><Length>4</Length>` +
		`<AccessMode>RW</AccessMode><pPort>Device</pPort><LSB>16</LSB><MSB>31</MSB><Sign>Unsigned</Sign></MaskedIntReg>`},

	maskedBitNode("GevSCPSDoNotFragment", 0x0d04, 1),
	maskedBitNode("GevSCPSBigEndian", 0x0d04, 2),

	{Name: "GevSCPSPacketSize", XML: `<MaskedIntReg Name="GevSCPSPacketSize">` +
		`<Address>0x0d04</Address><Length>4</Length><AccessMode>RW</AccessMode>` +
		`<pPort>Device</pPort><LSB>16</LSB><MSB>31</MSB><Sign>Unsigned</Sign></MaskedIntReg>`},

	{Name: "GevSCDA", XML: `<IntReg Name="GevSCDA"><Address>0x0d18</Address><Length>4</Length>` +
		`<AccessMode>RW</AccessMode><pPort>Device</pPort></IntReg>`},

	{Name: "GevSCSP", XML: `<MaskedIntReg Name="GevSCSP"><Address>0x0d1c</Address><Length>4</Length>` +
		`<AccessMode>RO</AccessMode><pPort>Device</pPort><LSB>16</LSB><MSB>31</MSB><Sign>Unsigned</Sign></MaskedIntReg>`},

	{Name: "TLParamsLocked", XML: `<IntReg Name="TLParamsLocked" Visibility="Invisible">` +
		`<Address>0x0</Address><Length>4</Length><AccessMode>RW</AccessMode>` +
		`<pPort>Device</pPort><Min>0</Min><Max>1</Max></IntReg>`},
}
