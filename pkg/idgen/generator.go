package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Generator hands out identifiers that are unique across restarts and instances.
type Generator interface {
	NextRunID() string
}

// SnowflakeGenerator implements the Generator interface using Twitter Snowflake
type SnowflakeGenerator struct {
	node *snowflake.Node
	mu   sync.Mutex
}

// NewSnowflakeGenerator initializes a new ID generator.
// nodeID must be unique per server instance (0-1023) to prevent collisions.
func NewSnowflakeGenerator(nodeID int64) (*SnowflakeGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	return &SnowflakeGenerator{
		node: node,
	}, nil
}

func (g *SnowflakeGenerator) next() snowflake.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.node.Generate()
}

// NextRunID returns a short base36 id that tags one submission of a job.
func (g *SnowflakeGenerator) NextRunID() string {
	return g.next().Base36()
}
