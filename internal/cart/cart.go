// Package cart holds the per-session shopping cart and its session store.
//
// A Cart is a plain value: it knows product ids and quantities and nothing
// about prices or stock. Stock checks and pricing happen in the service layer
// against the live catalog.
package cart

import "sort"

type Cart struct {
	lines map[int64]int
}

// Line is one product entry in the cart.
type Line struct {
	ProductID int64
	Quantity  int
}

func New() *Cart {
	return &Cart{lines: make(map[int64]int)}
}

// FromLines rebuilds a cart, dropping non-positive quantities.
func FromLines(lines []Line) *Cart {
	c := New()
	for _, l := range lines {
		c.Set(l.ProductID, l.Quantity)
	}
	return c
}

func (c *Cart) Quantity(productID int64) int {
	return c.lines[productID]
}

// Set replaces the quantity for productID. qty <= 0 removes the entry.
func (c *Cart) Set(productID int64, qty int) {
	if c.lines == nil {
		c.lines = make(map[int64]int)
	}
	if qty <= 0 {
		delete(c.lines, productID)
		return
	}
	c.lines[productID] = qty
}

func (c *Cart) Remove(productID int64) {
	delete(c.lines, productID)
}

func (c *Cart) Clear() {
	c.lines = make(map[int64]int)
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Lines returns the entries ordered by product id.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.lines))
	for id, qty := range c.lines {
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// ProductIDs returns the product ids in ascending order.
func (c *Cart) ProductIDs() []int64 {
	lines := c.Lines()
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}
