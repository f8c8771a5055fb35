// Package excerpt splits study material text into excerpts sized for
// prompt injection.
package excerpt

import "strings"

const (
	DefaultTargetSize = 1500
	DefaultMaxSize    = 2500
)

// Options configures excerpt sizing.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default excerpt sizing.
func DefaultOptions() Options {
	return Options{TargetSize: DefaultTargetSize, MaxSize: DefaultMaxSize}
}

// Split breaks material content into excerpts on heading and paragraph
// boundaries. Short content (<= MaxSize) returns a single excerpt.
func Split(text string, opts Options) []string {
	if opts.TargetSize == 0 {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}
	if len(text) <= opts.MaxSize {
		return []string{text}
	}

	var out []string
	var accum string
	for _, b := range splitBlocks(text) {
		if accum == "" {
			accum = b
			continue
		}
		combined := accum + "\n\n" + b
		if len(combined) <= opts.TargetSize {
			accum = combined
		} else {
			out = append(out, flush(accum, opts)...)
			accum = b
		}
	}
	out = append(out, flush(accum, opts)...)
	return out
}

// Leading returns the first excerpts fitting within budget chars total.
// At least one excerpt is returned for non-empty content so generation
// always has some material to work from.
func Leading(text string, budget int, opts Options) []string {
	excerpts := Split(text, opts)
	if len(excerpts) == 0 {
		return nil
	}
	var out []string
	used := 0
	for _, e := range excerpts {
		if used+len(e) > budget && len(out) > 0 {
			break
		}
		out = append(out, e)
		used += len(e)
	}
	return out
}

// splitBlocks splits text on heading lines and blank-line runs.
func splitBlocks(text string) []string {
	lines := strings.Split(text, "\n")
	var blocks []string
	var current []string

	push := func() {
		t := strings.TrimSpace(strings.Join(current, "\n"))
		if t != "" {
			blocks = append(blocks, t)
		}
		current = nil
	}

	prevEmpty := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && len(current) > 0 {
			push()
		}
		if trimmed == "" {
			if prevEmpty && len(current) > 0 {
				push()
			}
			prevEmpty = true
			current = append(current, line)
			continue
		}
		prevEmpty = false
		current = append(current, line)
	}
	push()

	return blocks
}

// flush emits an accumulated block, hard-splitting on line boundaries when
// it exceeds MaxSize.
func flush(accum string, opts Options) []string {
	t := strings.TrimSpace(accum)
	if t == "" {
		return nil
	}
	if len(t) <= opts.MaxSize {
		return []string{t}
	}

	var out []string
	var current []string
	curLen := 0
	for _, line := range strings.Split(t, "\n") {
		if curLen+len(line) > opts.TargetSize && len(current) > 0 {
			if s := strings.TrimSpace(strings.Join(current, "\n")); s != "" {
				out = append(out, s)
			}
			current = nil
			curLen = 0
		}
		current = append(current, line)
		curLen += len(line) + 1
	}
	if s := strings.TrimSpace(strings.Join(current, "\n")); s != "" {
		out = append(out, s)
	}
	return out
}
