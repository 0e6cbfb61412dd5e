package nodes

import (
	"fmt"
	"net"
	"time"

	"bbsgate/internal/terminal"
)

// Connection is what a node needs from whichever transport the caller used.
type Connection interface {
	Send(msg string) error
	RemoteAddr() net.Addr
	TerminalInfo() terminal.Info
}

type Node struct {
	ID          int
	Transport   string
	ConnectedAt time.Time
	Conn        Connection
}

func (n *Node) String() string {
	if n.Conn == nil {
		return fmt.Sprintf("Node %d (Disconnected)", n.ID)
	}
	return fmt.Sprintf("Node %d (%s)", n.ID, n.Conn.RemoteAddr())
}
