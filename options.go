package pvec

import (
	"fmt"
)

const (
	// MinBitWidth is the smallest supported bit width (branching factor 2).
	MinBitWidth = 1
	// MaxBitWidth is the largest supported bit width (branching factor
	// 262144); wider nodes waste more space than any fan-out saves.
	MaxBitWidth = 18
)

var defaultBitWidth = uint(5)

type config struct {
	bitWidth uint
}

// Option configures a vector at construction or load time.
type Option func(*config) error

// UseTreeBitWidth sets the number of index bits consumed per trie level,
// making the branching factor 1 << bitWidth.
func UseTreeBitWidth(bitWidth uint) Option {
	return func(c *config) error {
		if bitWidth < MinBitWidth {
			return fmt.Errorf("bit width must be at least %d, is %d", MinBitWidth, bitWidth)
		}
		if bitWidth > MaxBitWidth {
			return fmt.Errorf("bit width must be at most %d, is %d", MaxBitWidth, bitWidth)
		}
		c.bitWidth = bitWidth
		return nil
	}
}

func defaultConfig() *config {
	return &config{
		bitWidth: defaultBitWidth,
	}
}
