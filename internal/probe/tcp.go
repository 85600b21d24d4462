package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/vigil-dev/vigil/internal/config"
)

// dialTimeout keeps a single connect attempt comfortably inside the poll
// cadence.
const dialTimeout = 400 * time.Millisecond

type tcpProber struct {
	address string
	dialer  func(ctx context.Context, network, address string) (net.Conn, error)
}

func newTCPProber(spec *config.PortProbeSpec) Prober {
	address := net.JoinHostPort("127.0.0.1", strconv.Itoa(spec.Number))
	return &tcpProber{
		address: address,
		dialer:  (&net.Dialer{Timeout: dialTimeout}).DialContext,
	}
}

func (p *tcpProber) Probe(ctx context.Context) error {
	conn, err := p.dialer(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.address, err)
	}
	return conn.Close()
}
