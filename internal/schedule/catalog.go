// Package schedule defines the daily slot grid and who may book which
// (date, slot) pair, and when.
package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSlotLabels is the service-day grid used when configuration has none.
var DefaultSlotLabels = []string{
	"8-9 AM", "9-10 AM", "10-11 AM", "11-12 PM", "12-1 PM",
	"1-2 PM", "2-3 PM", "3-4 PM", "4-5 PM", "5-6 PM", "6-7 PM",
}

// Catalog is the ordered, fixed set of slot labels for every service day.
type Catalog struct {
	labels []string
	index  map[string]int
}

// NewCatalog validates labels (non-empty, unique, trimmed) and keeps their order.
func NewCatalog(labels []string) (Catalog, error) {
	if len(labels) == 0 {
		return Catalog{}, errors.New("schedule: slot catalog is empty")
	}
	c := Catalog{labels: make([]string, 0, len(labels)), index: make(map[string]int, len(labels))}
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return Catalog{}, errors.New("schedule: blank slot label")
		}
		if _, dup := c.index[l]; dup {
			return Catalog{}, fmt.Errorf("schedule: duplicate slot label %q", l)
		}
		c.index[l] = len(c.labels)
		c.labels = append(c.labels, l)
	}
	return c, nil
}

// Labels returns a copy of the labels in service-day order.
func (c Catalog) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Contains reports whether label is part of the grid.
func (c Catalog) Contains(label string) bool {
	_, ok := c.index[label]
	return ok
}
