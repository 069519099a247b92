package config

import (
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// SetDSCP applies a best-effort DSCP marking to outgoing packets on conn,
// implemented as setsockopt IP_TOS = dscp<<2 (IPv4) or IPV6_TCLASS (IPv6).
// Errors are non-fatal; the caller should log and continue.
func SetDSCP(conn net.PacketConn, dscp int) error {
	if udp, ok := conn.(*net.UDPConn); ok {
		if err := ipv4.NewConn(udp).SetTOS(dscp << 2); err == nil {
			return nil
		}
		return ipv6.NewConn(udp).SetTrafficClass(dscp)
	}
	return nil
}
