package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"helioscan/internal/potential"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	topRowStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Padding(0, 1)
)

// RenderTerminal renders markdown for the terminal via glamour. On
// renderer failure the raw markdown is returned so output is never
// lost.
func RenderTerminal(markdown string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// RankingTable renders the ranking as a styled terminal table.
func RankingTable(ranked []potential.Ranked) string {
	headers := []string{"Rank", "Station", "Score", "Avg GHI", "Consistency"}
	rows := make([][]string, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Rank),
			titleCase(r.Station),
			fmt.Sprintf("%.2f", r.CompositeScore),
			fmt.Sprintf("%.2f", r.Metrics.MeanGHI),
			fmt.Sprintf("%.2f%%", r.Metrics.Consistency),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	for i, h := range headers {
		sb.WriteString(tableHeaderStyle.Width(widths[i]).Render(h))
	}
	sb.WriteString("\n")
	for ri, row := range rows {
		style := tableCellStyle
		if ri == 0 {
			style = topRowStyle // highlight the recommended station
		}
		for i, cell := range row {
			sb.WriteString(style.Width(widths[i]).Render(cell))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Sparkline renders a histogram of vals as a row of block characters.
func Sparkline(vals []float64, bins int) string {
	if len(vals) == 0 || bins <= 0 {
		return ""
	}

	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	counts := make([]int, bins)
	if max == min {
		counts[0] = len(vals)
	} else {
		for _, v := range vals {
			idx := int((v - min) / (max - min) * float64(bins))
			if idx == bins {
				idx = bins - 1
			}
			counts[idx]++
		}
	}

	peak := 0
	for _, c := range counts {
		if c > peak {
			peak = c
		}
	}

	blocks := []rune("▁▂▃▄▅▆▇█")
	var sb strings.Builder
	for _, c := range counts {
		if c == 0 {
			sb.WriteRune(' ')
			continue
		}
		idx := int(math.Ceil(float64(c) / float64(peak) * float64(len(blocks)-1)))
		sb.WriteRune(blocks[idx])
	}
	return sb.String()
}

// WriteStationReport writes a station's markdown report under dir and
// returns the file path.
func WriteStationReport(dir, station, markdown string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_analysis.md", station))
	if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}

// WriteFinalReport writes the comparative report with a timestamped
// name under dir and returns the file path.
func WriteFinalReport(dir, markdown string, generatedAt time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}
	name := fmt.Sprintf("final_analysis_report_%s.md", generatedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}
