package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/excelytics/internal/sheet"
)

// Options controls column profiling.
type Options struct {
	// TopValues is how many most frequent text values to keep per column.
	TopValues int
	// OutlierThreshold is the robust Z-score (MAD based) above which a numeric
	// value counts as an outlier. 0 disables outlier detection.
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for profiling.
func DefaultOptions() Options {
	return Options{TopValues: 5, OutlierThreshold: 3.5}
}

// Column kinds reported by Profile.
const (
	KindNumeric = "numeric"
	KindBoolean = "boolean"
	KindText    = "text"
	KindMixed   = "mixed"
	KindEmpty   = "empty"
)

// ColumnProfile captures inferred type and statistics for one column.
type ColumnProfile struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	NonNull int    `json:"nonNull"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique"`
	// Numeric stats, set when at least one value is numeric.
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Mean     *float64 `json:"mean,omitempty"`
	Std      *float64 `json:"std,omitempty"`
	Median   *float64 `json:"median,omitempty"`
	Outliers int      `json:"outliers,omitempty"`
	// Most frequent values for text-like columns.
	TopValues []CategoryCount `json:"topValues,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type colAcc struct {
	name            string
	nonNil, miss    int
	numCnt, boolCnt int
	txtCnt          int
	n               int
	mean, m2        float64
	min, max        float64
	vals            []float64
	cats            map[string]int
	firstSeen       map[string]int
}

// Profile computes a ColumnProfile for every column of s, keyed by the same
// names chart axes use.
func Profile(s *sheet.Sheet, opt Options) []ColumnProfile {
	keys := sheet.RecordKeys(s.Columns())
	cols := make([]*colAcc, len(keys))
	for i, k := range keys {
		cols[i] = &colAcc{name: k, min: math.Inf(1), max: math.Inf(-1), cats: map[string]int{}, firstSeen: map[string]int{}}
	}
	for _, row := range s.Records() {
		for _, c := range cols {
			v, ok := row[c.name]
			if !ok {
				c.miss++
				continue
			}
			c.nonNil++
			text := v.ToText()
			if _, seen := c.cats[text]; !seen {
				c.firstSeen[text] = len(c.firstSeen)
			}
			c.cats[text]++
			switch v.Kind() {
			case sheet.KindNumber:
				c.numCnt++
				x, _ := v.ToNumber()
				c.add(x)
			case sheet.KindBool:
				c.boolCnt++
			default:
				c.txtCnt++
			}
		}
	}
	out := make([]ColumnProfile, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.profile(opt))
	}
	return out
}

// add is a Welford update.
func (c *colAcc) add(x float64) {
	c.n++
	if x < c.min {
		c.min = x
	}
	if x > c.max {
		c.max = x
	}
	delta := x - c.mean
	c.mean += delta / float64(c.n)
	c.m2 += delta * (x - c.mean)
	c.vals = append(c.vals, x)
}

func (c *colAcc) kind() string {
	switch {
	case c.nonNil == 0:
		return KindEmpty
	case c.numCnt == c.nonNil:
		return KindNumeric
	case c.boolCnt == c.nonNil:
		return KindBoolean
	case c.txtCnt == c.nonNil:
		return KindText
	default:
		return KindMixed
	}
}

func (c *colAcc) profile(opt Options) ColumnProfile {
	p := ColumnProfile{
		Name:    c.name,
		Kind:    c.kind(),
		NonNull: c.nonNil,
		Missing: c.miss,
		Unique:  len(c.cats),
	}
	if c.n > 0 {
		std := 0.0
		if c.n > 1 {
			std = math.Sqrt(c.m2 / float64(c.n-1))
		}
		median, mad := medianMAD(c.vals)
		p.Min, p.Max, p.Mean, p.Std, p.Median = ptr(c.min), ptr(c.max), ptr(c.mean), ptr(std), ptr(median)
		if opt.OutlierThreshold > 0 && mad > 0 {
			for _, x := range c.vals {
				// 0.6745 scales MAD to a standard-deviation estimate.
				if math.Abs(0.6745*(x-median)/mad) > opt.OutlierThreshold {
					p.Outliers++
				}
			}
		}
	}
	if p.Kind != KindNumeric && p.Kind != KindEmpty && opt.TopValues > 0 {
		p.TopValues = c.top(opt.TopValues)
	}
	return p
}

// top returns the n most frequent values; ties keep first-seen order.
func (c *colAcc) top(n int) []CategoryCount {
	all := make([]CategoryCount, 0, len(c.cats))
	for v, cnt := range c.cats {
		all = append(all, CategoryCount{Value: v, Count: cnt})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return c.firstSeen[all[i].Value] < c.firstSeen[all[j].Value]
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func ptr(f float64) *float64 { return &f }

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
