package device

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// IPConfigurationMode is the tri-state address assignment policy,
// grounded on arv_gv_device_get/set_ip_configuration_mode.
type IPConfigurationMode int

const (
	IPConfigurationUnknown IPConfigurationMode = iota
	IPConfigurationDHCP
	IPConfigurationPersistentIP
	IPConfigurationLLA
)

// GetCurrentIP returns the device's currently active IPv4 address, mask
// and gateway. It is read-only; use SetPersistentIP to change a device's
// configured address.
func (s *Session) GetCurrentIP() (addr, mask, gateway net.IP, err error) {
	return s.readIPTriple(gvcp.RegCurrentIPAddress, gvcp.RegCurrentSubnetMask, gvcp.RegCurrentDefaultGateway)
}

// GetPersistentIP returns the address a device will use on next boot
// when configured for IPConfigurationPersistentIP.
func (s *Session) GetPersistentIP() (addr, mask, gateway net.IP, err error) {
	return s.readIPTriple(gvcp.RegPersistentIPAddress, gvcp.RegPersistentSubnetMask, gvcp.RegPersistentDefaultGateway)
}

func (s *Session) readIPTriple(addrReg, maskReg, gatewayReg uint32) (net.IP, net.IP, net.IP, error) {
	addr, err := s.readRegister(addrReg)
	if err != nil {
		return nil, nil, nil, err
	}
	mask, err := s.readRegister(maskReg)
	if err != nil {
		return nil, nil, nil, err
	}
	gateway, err := s.readRegister(gatewayReg)
	if err != nil {
		return nil, nil, nil, err
	}
	return uint32ToIP(addr), uint32ToIP(mask), uint32ToIP(gateway), nil
}

// SetPersistentIP programs the persistent address triple and switches
// the device into IPConfigurationPersistentIP mode, per
// arv_gv_device_set_persistent_ip. IPv6 addresses are rejected: the
// protocol's address registers are 32-bit.
func (s *Session) SetPersistentIP(addr, mask, gateway net.IP) error {
	a4, m4, g4 := addr.To4(), mask.To4(), gateway.To4()
	if a4 == nil || m4 == nil || g4 == nil {
		return gvcp.Errorf("SetPersistentIP", gvcp.KindInvalidParameter, fmt.Errorf("IPv6 addresses are not supported"))
	}

	if err := s.writeRegister(gvcp.RegPersistentIPAddress, binary.BigEndian.Uint32(a4)); err != nil {
		return err
	}
	if err := s.writeRegister(gvcp.RegPersistentSubnetMask, binary.BigEndian.Uint32(m4)); err != nil {
		return err
	}
	if err := s.writeRegister(gvcp.RegPersistentDefaultGateway, binary.BigEndian.Uint32(g4)); err != nil {
		return err
	}

	return s.SetIPConfigurationMode(IPConfigurationPersistentIP)
}

// SetPersistentIPFromString is SetPersistentIP taking dotted-quad
// strings.
func (s *Session) SetPersistentIPFromString(addr, mask, gateway string) error {
	a := net.ParseIP(addr)
	m := net.ParseIP(mask)
	g := net.ParseIP(gateway)
	if a == nil || m == nil || g == nil {
		return gvcp.Errorf("SetPersistentIPFromString", gvcp.KindInvalidParameter, fmt.Errorf("invalid address string"))
	}
	return s.SetPersistentIP(a, m, g)
}

// GetIPConfigurationMode derives the active addressing mode from the
// current-IP-configuration bits (LLA/DHCP/PersistentIP), per
// arv_gv_device_get_ip_configuration_mode.
func (s *Session) GetIPConfigurationMode() (IPConfigurationMode, error) {
	v, err := s.readRegister(gvcp.RegIPConfiguration)
	if err != nil {
		return IPConfigurationUnknown, err
	}
	switch {
	case v&(1<<gvcp.IPConfigDHCPBit) != 0:
		return IPConfigurationDHCP, nil
	case v&(1<<gvcp.IPConfigPersistentIPBit) != 0:
		return IPConfigurationPersistentIP, nil
	case v&(1<<gvcp.IPConfigLLABit) != 0:
		return IPConfigurationLLA, nil
	default:
		return IPConfigurationUnknown, nil
	}
}

// SetIPConfigurationMode sets exactly one of the LLA/DHCP/PersistentIP
// bits, clearing the other two, per arv_gv_device_set_ip_configuration_mode.
func (s *Session) SetIPConfigurationMode(mode IPConfigurationMode) error {
	var v uint32
	switch mode {
	case IPConfigurationDHCP:
		v = 1 << gvcp.IPConfigDHCPBit
	case IPConfigurationPersistentIP:
		v = 1 << gvcp.IPConfigPersistentIPBit
	case IPConfigurationLLA:
		v = 1 << gvcp.IPConfigLLABit
	default:
		return gvcp.Errorf("SetIPConfigurationMode", gvcp.KindInvalidParameter, fmt.Errorf("unknown mode %v", mode))
	}
	return s.writeRegister(gvcp.RegIPConfiguration, v)
}

func uint32ToIP(v uint32) net.IP {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return net.IP(buf)
}
