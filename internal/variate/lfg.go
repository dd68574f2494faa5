package variate

const (
	lfgModulus = 4000000
	lfgSeed    = 1618033
	lfgScale   = 2.5e-7 // 1/lfgModulus
	lfgSize    = 55
)

// LaggedFibonacci is the subtractive lagged-Fibonacci uniform generator.
//
// The table holds 55 working values at positions 1..55 (position 0 is
// unused). Each output replaces table[next] with table[next]-table[nextp]
// modulo 4,000,000, the two cursors being 31 positions apart.
//
// A LaggedFibonacci is not safe for concurrent use. Give every simulation
// stream its own instance.
type LaggedFibonacci struct {
	table [lfgSize + 1]int64
	next  int
	nextp int
}

// NewLaggedFibonacci returns a generator already reseeded with seed, so no
// uninitialised state is ever observable.
func NewLaggedFibonacci(seed int64) *LaggedFibonacci {
	g := &LaggedFibonacci{}
	g.Reseed(seed)
	return g
}

// Reseed restarts the stream. The same seed gives a bit-identical stream.
func (g *LaggedFibonacci) Reseed(seed int64) {
	mj := absInt64(lfgSeed - absInt64(seed))
	mj %= lfgModulus
	if mj < 0 { // only reachable for seed == math.MinInt64
		mj = -mj
	}
	g.table[lfgSize] = mj

	// warm-up: fill the table in the order 21, 42, 8, ... (21*i mod 55)
	mk := int64(1)
	for i := 1; i < lfgSize; i++ {
		ii := (21 * i) % lfgSize
		g.table[ii] = mk
		mk = mj - mk
		if mk < 0 {
			mk += lfgModulus
		}
		mj = g.table[ii]
	}

	// four passes to shake out the initial structure
	for k := 0; k < 4; k++ {
		for i := 1; i <= lfgSize; i++ {
			g.table[i] -= g.table[1+(i+30)%lfgSize]
			if g.table[i] < 0 {
				g.table[i] += lfgModulus
			}
		}
	}

	g.next = 0
	g.nextp = 31
}

// Float64 returns the next value in [0, 1).
func (g *LaggedFibonacci) Float64() float64 {
	g.next++
	if g.next > lfgSize {
		g.next = 1
	}
	g.nextp++
	if g.nextp > lfgSize {
		g.nextp = 1
	}
	mj := g.table[g.next] - g.table[g.nextp]
	if mj < 0 {
		mj += lfgModulus
	}
	g.table[g.next] = mj
	return float64(mj) * lfgScale
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
