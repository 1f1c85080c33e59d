package channel

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// TCPAddr is the Addr implementation NonBlockingChannel speaks: a resolved
// IPv4/IPv6 endpoint, convertible directly to a unix.Sockaddr for the raw
// socket calls doConnect/unsafeBind issue.
type TCPAddr struct {
	IP   net.IP
	Port int
}

func (a *TCPAddr) Network() string { return "tcp" }

func (a *TCPAddr) String() string {
	return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
}

// ResolveTCPAddr parses "host:port" into a TCPAddr, per spec.md §4.G's
// resolver step. Hostnames are resolved via the standard resolver; an
// unresolvable host surfaces as *nerr.Error{Kind: KindUnresolvedAddress}.
func ResolveTCPAddr(hostport string) (*TCPAddr, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, unresolvedAddrErr(hostport, err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, unresolvedAddrErr(hostport, err)
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return nil, unresolvedAddrErr(hostport, err)
	}
	return &TCPAddr{IP: ips[0], Port: port}, nil
}

func (a *TCPAddr) sockaddr() (unix.Sockaddr, int, error) {
	if ip4 := a.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	ip6 := a.IP.To16()
	if ip6 == nil {
		return nil, 0, fmt.Errorf("channel: invalid IP %v", a.IP)
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], ip6)
	return sa, unix.AF_INET6, nil
}

func addrFromSockaddr(sa unix.Sockaddr) Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return nil
	}
}
