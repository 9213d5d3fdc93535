package game

// Shuffler permutes a slice in place. *session.Rand and math/rand/v2 both satisfy it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Pile is one side of the deck. Pool is the full card set; Queue is what is left of the
// current shuffle. Generation counts how many times Pool has been shuffled.
type Pile struct {
	Pool       []CardRef `json:"pool"`
	Queue      []CardRef `json:"queue"`
	Generation int       `json:"generation"`
}

type Deck struct {
	White Pile `json:"white"`
	Black Pile `json:"black"`
}

// NewPile shuffles pool once and starts generation 1.
func NewPile(pool []CardRef, rng Shuffler) Pile {
	p := Pile{Pool: append([]CardRef(nil), pool...)}
	p.reshuffle(rng)
	return p
}

func (p *Pile) reshuffle(rng Shuffler) {
	p.Queue = append(p.Queue[:0], p.Pool...)
	rng.Shuffle(len(p.Queue), func(i, j int) { p.Queue[i], p.Queue[j] = p.Queue[j], p.Queue[i] })
	p.Generation++
}

// Draw pops the next card. An exhausted queue is refilled from the whole pool, so
// repeats only happen across generations. ok is false for an empty pool.
func (p *Pile) Draw(rng Shuffler) (CardRef, bool) {
	if len(p.Pool) == 0 {
		return CardRef{}, false
	}
	if len(p.Queue) == 0 {
		p.reshuffle(rng)
	}
	c := p.Queue[0]
	p.Queue = p.Queue[1:]
	return c, true
}

// Remaining is the number of cards left before the next reshuffle.
func (p *Pile) Remaining() int { return len(p.Queue) }

func (p Pile) clone() Pile {
	return Pile{
		Pool:       append([]CardRef(nil), p.Pool...),
		Queue:      append([]CardRef(nil), p.Queue...),
		Generation: p.Generation,
	}
}

func (d Deck) clone() Deck { return Deck{White: d.White.clone(), Black: d.Black.clone()} }
