package printer

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// --- Discovery Logic ---

// discoverPrinter scans the local /24 subnet for a host answering on the
// printer port and returns the first match.
func discoverPrinter(ctx context.Context, port int) (string, error) {
	localIP, err := detectLocalIP()
	if err != nil {
		return "", fmt.Errorf("detecting local ip: %w", err)
	}
	parts := strings.Split(localIP, ".")
	subnet := strings.Join(parts[:3], ".")

	ipChan := make(chan string, 256)
	foundChan := make(chan string, 256)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range ipChan {
				if ctx.Err() != nil {
					continue
				}
				if probe(ip, port) {
					foundChan <- ip
				}
			}
		}()
	}

	for i := 1; i <= 254; i++ {
		ipChan <- fmt.Sprintf("%s.%d", subnet, i)
	}
	close(ipChan)

	go func() {
		wg.Wait()
		close(foundChan)
	}()

	for ip := range foundChan {
		return ip, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", fmt.Errorf("no printer found on subnet %s.0/24 port %d", subnet, port)
}

func detectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IPv4 address found")
}

func probe(ip string, port int) bool {
	addr := fmt.Sprintf("%s:%d", ip, port)
	conn, err := net.DialTimeout("tcp", addr, 300*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
