// Package srt parses SubRip subtitle files. Each cue becomes one utterance.
package srt

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// Format parses SRT.
type Format struct{}

// New creates an SRT format parser.
func New() *Format {
	return &Format{}
}

var timingLine = regexp.MustCompile(
	`^(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})`)

// Name identifies the format.
func (f *Format) Name() string { return "srt" }

// Extensions returns the extensions this format is tried for.
func (f *Format) Extensions() []string { return []string{".srt"} }

// Priority returns the detection priority.
func (f *Format) Priority() int { return 5 }

// Detect reports whether data contains an SRT timing line.
func (f *Format) Detect(data []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for i := 0; i < 5 && sc.Scan(); i++ {
		if timingLine.MatchString(strings.TrimSpace(sc.Text())) {
			return true
		}
	}
	return false
}

// Parse converts cues to utterances. Indices follow cue order from zero;
// multi-line cue text is joined with spaces.
func (f *Format) Parse(data []byte) ([]domain.Utterance, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		utts    []domain.Utterance
		current *domain.Utterance
		lines   []string
		lineNo  int
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.Join(lines, " ")
		if current.Text != "" {
			current.Index = len(utts)
			utts = append(utts, *current)
		}
		current, lines = nil, nil
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		if m := timingLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &domain.Utterance{
				Start: seconds(m[1:5]),
				End:   seconds(m[5:9]),
			}
			continue
		}
		if current == nil {
			// Cue sequence numbers precede the timing line.
			if _, err := strconv.Atoi(line); err == nil {
				continue
			}
			return nil, fmt.Errorf("%w: line %d: text outside a cue", domain.ErrInvalidInput, lineNo)
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	flush()
	return utts, nil
}

// seconds converts hour, minute, second and millisecond captures.
func seconds(parts []string) float64 {
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	s, _ := strconv.Atoi(parts[2])
	ms, _ := strconv.Atoi((parts[3] + "00")[:3])
	return float64(h*3600+m*60+s) + float64(ms)/1000
}
