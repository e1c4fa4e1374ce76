package ui

import "strings"

// Sparkline keeps a ring buffer of throughput samples and renders
// them as Unicode block characters.
type Sparkline struct {
	samples []float64
	width   int
	head    int
	count   int
	max     float64
}

// SparklineChars are the eight block heights, empty to full.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{
		samples: make([]float64, width),
		width:   width,
	}
}

// Add records one sample.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++

	if value > s.max {
		s.max = value
	}
	// The max only grows as samples arrive; rescan once per lap so a
	// falling rate does not leave the chart pinned low.
	if s.count%s.width == 0 {
		s.recalculateMax()
	}
}

func (s *Sparkline) recalculateMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max < 1 {
		s.max = 1
	}
}

// Render returns the sparkline at its native width.
func (s *Sparkline) Render() string {
	return s.render(s.width)
}

// RenderWithWidth returns the most recent samples at the given width.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width >= s.width {
		return s.Render()
	}
	return s.render(width)
}

func (s *Sparkline) render(width int) string {
	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}
	if s.max <= 0 {
		s.recalculateMax()
	}

	var sb strings.Builder
	sb.Grow(width * 3)

	numSamples := min(s.count, s.width)
	skip := 0
	if numSamples > width {
		skip = numSamples - width
	}
	start := 0
	if s.count >= s.width {
		start = s.head
	}

	rendered := 0
	for i := 0; i < s.width && rendered < width; i++ {
		if i < skip {
			continue
		}

		idx := (start + i) % s.width
		charIdx := 0
		if s.max > 0 {
			charIdx = int(s.samples[idx] / s.max * float64(len(SparklineChars)-1))
			if charIdx < 0 {
				charIdx = 0
			}
			if charIdx >= len(SparklineChars) {
				charIdx = len(SparklineChars) - 1
			}
		}

		if i >= numSamples && s.count < s.width {
			sb.WriteRune(' ')
		} else {
			sb.WriteRune(SparklineChars[charIdx])
		}
		rendered++
	}
	for rendered < width {
		sb.WriteRune(' ')
		rendered++
	}
	return sb.String()
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	s.max = 0
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the largest sample currently tracked.
func (s *Sparkline) Max() float64 {
	return s.max
}
