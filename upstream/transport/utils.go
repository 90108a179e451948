package transport

import "net"

// ensurePort 给没有端口的地址补上默认端口
func ensurePort(address, defaultPort string) string {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return net.JoinHostPort(address, defaultPort)
	}
	return address
}
