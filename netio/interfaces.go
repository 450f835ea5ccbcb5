package netio

import "net"

// ActiveInterfaceAddresses returns the IPv4 addresses of every network
// interface that is administratively and operationally up. It is
// available to callers that want to bind to a specific interface;
// MulticastReceive's per-interface join uses ActiveInterfaces instead.
func ActiveInterfaceAddresses() []uint32 {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var addresses []uint32
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagRunning == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if v4 := ip.To4(); v4 != nil {
				addresses = append(addresses, FromIPv4(v4))
			}
		}
	}
	return addresses
}

// ActiveInterfaces returns every network interface that is up, for
// callers (such as Endpoint's multicast join) that need the interface
// identity itself rather than just its address.
func ActiveInterfaces() []net.Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var up []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 {
			up = append(up, iface)
		}
	}
	return up
}
