package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker reports whether a listener accepts connections at Address.
// The timeout comes from the context, so run it through Run or WaitHealthy.
type TCPChecker struct {
	Address string
	dialer  net.Dialer
}

// NewTCPChecker creates a checker for address
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{Address: address}
}

// Check dials Address once and closes the connection
func (t *TCPChecker) Check(ctx context.Context) Result {
	res := Result{CheckedAt: time.Now()}

	conn, err := t.dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		res.Message = fmt.Sprintf("%s unreachable: %v", t.Address, err)
	} else {
		_ = conn.Close()
		res.Healthy = true
		res.Message = fmt.Sprintf("%s accepting connections", t.Address)
	}

	res.Duration = time.Since(res.CheckedAt)
	return res
}

// Type returns the health check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}
