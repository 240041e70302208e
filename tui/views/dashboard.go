package views

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dashboardDataMsg struct {
	stats         []db.HandlerStats
	runs          []db.ScrapeRun
	cityStats     []db.CityStats
	archivedCount int
	activeCount   int
	mediaQueue    int
	enrichQueue   int
	paused        bool
}

type logTailMsg struct {
	lines        []string
	modTime      time.Time
	daemonActive bool
}

type Dashboard struct {
	db            *db.Client
	width, height int
	archiveOn     bool
	stats         []db.HandlerStats
	runs          []db.ScrapeRun
	cityStats     []db.CityStats
	archivedCount int
	activeCount   int
	mediaQueue    int
	enrichQueue   int
	paused        bool
	logLines      []string
	logPath       string
	logScroll     int // scroll offset (0 = bottom/newest)
	logViewport   int // visible lines
	logBuffer     int // total lines to keep
	logModTime    time.Time
	daemonActive  bool
}

func NewDashboard(dbClient *db.Client, logPath string) Dashboard {
	if logPath == "" {
		logPath = "daemon.log"
	}
	return Dashboard{
		db:          dbClient,
		archiveOn:   dbClient.HasArchive(),
		logPath:     logPath,
		logViewport: 30,
		logBuffer:   200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.RefreshLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		stats, _ := d.db.HandlerStats()
		runs, _ := d.db.RecentRuns(10)
		cityStats, _ := d.db.CityStats()
		archived, _ := d.db.ArchivedCount(false)
		active, _ := d.db.ArchivedCount(true)
		mediaQueue, _ := d.db.PendingMediaCount()
		enrichQueue, _ := d.db.PendingEnrichmentCount()
		paused, _ := d.db.ScrapingPaused()
		return dashboardDataMsg{stats, runs, cityStats, archived, active, mediaQueue, enrichQueue, paused}
	}
}

func (d Dashboard) RefreshLog() tea.Cmd {
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		active := isDaemonActive()
		return logTailMsg{lines, modTime, active}
	}
}

func isDaemonActive() bool {
	out, err := exec.Command("systemctl", "is-active", "we_listings").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "active"
}

func readLastLines(path string, n int) ([]string, time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	modTime := info.ModTime()

	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	var allLines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	if len(allLines) == 0 {
		return []string{"(empty log)"}, modTime
	}

	start := len(allLines) - n
	if start < 0 {
		start = 0
	}
	return allLines[start:], modTime
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width = w
	d.height = h
	return d
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.stats = msg.stats
		d.runs = msg.runs
		d.cityStats = msg.cityStats
		d.archivedCount = msg.archivedCount
		d.activeCount = msg.activeCount
		d.mediaQueue = msg.mediaQueue
		d.enrichQueue = msg.enrichQueue
		d.paused = msg.paused
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
		d.daemonActive = msg.daemonActive
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height - 4
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "up", "k":
			d.logScroll++
			if d.logScroll > maxScroll {
				d.logScroll = maxScroll
			}
		case "down", "j":
			d.logScroll--
			if d.logScroll < 0 {
				d.logScroll = 0
			}
		case "pgup":
			d.logScroll += 10
			if d.logScroll > maxScroll {
				d.logScroll = maxScroll
			}
		case "pgdown":
			d.logScroll -= 10
			if d.logScroll < 0 {
				d.logScroll = 0
			}
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	statCards := d.renderStatCards()
	handlerCards := d.renderHandlerCards()
	cityCards := d.renderCityCards()
	runsTable := d.renderRunsTable()
	logTail := d.renderLogTail()

	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Dashboard"),
		statCards,
		"",
		handlerCards,
		"",
		cityCards,
		"",
		styles.Title.Render("Recent Runs"),
		runsTable,
		"",
		logTail,
	)
}

func (d Dashboard) renderLogTail() string {
	if len(d.logLines) == 0 {
		content := styles.Muted.Render("(waiting for logs...)")
		return styles.LogBox.Width(d.width - 4).Render(content)
	}

	// Visible window counted from the end, offset by the scroll position.
	total := len(d.logLines)
	endIdx := total - d.logScroll
	startIdx := endIdx - d.logViewport
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > total {
		endIdx = total
	}

	visibleLines := d.logLines[startIdx:endIdx]
	maxLineWidth := d.width - 8

	var lines []string
	for _, line := range visibleLines {
		styled := d.styleLogLine(line, maxLineWidth)
		lines = append(lines, styled)
	}

	content := strings.Join(lines, "\n")

	scrollInfo := ""
	if !d.daemonActive {
		scrollInfo = styles.StatusError.Render(" ● STOPPED ")
	} else if d.paused {
		scrollInfo = styles.StatusPending.Render(" ⏸ PAUSED ")
	} else if d.logScroll > 0 {
		scrollInfo = styles.StatusPending.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	} else {
		scrollInfo = styles.StatusSuccess.Render(" ● LIVE ")
	}

	header := styles.Title.Render("Live Log") + scrollInfo +
		styles.Muted.Render(fmt.Sprintf("[%d-%d/%d]", startIdx+1, endIdx, total))

	boxContent := header + "\n" + content
	return styles.LogBox.Width(d.width - 4).Render(boxContent)
}

func (d Dashboard) styleLogLine(line string, maxWidth int) string {
	line = truncate(line, maxWidth)

	// Daemon lines start with a "2026/01/25 10:30:45" timestamp.
	if len(line) > 19 && (line[4] == '/' || line[10] == ' ') {
		timestamp := line[:19]
		rest := line[19:]

		styledTs := styles.LogTimestamp.Render(timestamp)

		if strings.Contains(rest, "ERROR") || strings.Contains(rest, "error") {
			return styledTs + styles.StatusError.Render(rest)
		} else if strings.Contains(rest, "WARN") || strings.Contains(rest, "warn") {
			return styledTs + styles.StatusPending.Render(rest)
		} else if strings.Contains(rest, "INFO") || strings.Contains(rest, "info") {
			return styledTs + styles.LogInfo.Render(rest)
		}
		return styledTs + rest
	}

	if strings.Contains(line, "ERROR") || strings.Contains(line, "error") {
		return styles.StatusError.Render(line)
	} else if strings.Contains(line, "WARN") || strings.Contains(line, "warn") {
		return styles.StatusPending.Render(line)
	} else if strings.Contains(line, "INFO") || strings.Contains(line, "info") {
		return styles.LogInfo.Render(line)
	}
	return line
}

func (d Dashboard) renderStatCards() string {
	cards := []string{
		d.renderStatCard("Archived", d.archiveStat(d.archivedCount)),
		d.renderStatCard("Active", d.archiveStat(d.activeCount)),
		d.renderStatCard("Media Q", d.archiveStat(d.mediaQueue)),
		d.renderStatCard("Enrich Q", d.archiveStat(d.enrichQueue)),
		d.renderStatCard("Handlers", fmt.Sprintf("%d", len(d.stats))),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (d Dashboard) archiveStat(n int) string {
	if !d.archiveOn {
		return "—"
	}
	return fmt.Sprintf("%d", n)
}

func (d Dashboard) renderStatCard(label, value string) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		styles.StatValue.Render(value),
		styles.StatLabel.Render(label),
	)
	return styles.CardBorder.Width(16).Render(content)
}

func (d Dashboard) renderHandlerCards() string {
	if len(d.stats) == 0 {
		return styles.Muted.Render("No runs recorded")
	}

	var cards []string
	for _, s := range d.stats {
		cards = append(cards, d.renderHandlerCard(s))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (d Dashboard) renderHandlerCard(s db.HandlerStats) string {
	status := "○ never run"
	statusStyle := styles.StatusPending
	if s.LastRunStatus != nil {
		switch *s.LastRunStatus {
		case "completed":
			status = "✓ completed"
			statusStyle = styles.StatusSuccess
		case "failed":
			status = "✗ failed"
			statusStyle = styles.StatusError
		case "running":
			status = "◐ running"
			statusStyle = styles.StatusPending
		}
	}

	lastRun := "never"
	if s.LastRunAt != nil {
		lastRun = relativeTime(*s.LastRunAt)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.StatValue.Render(s.Handler),
		statusStyle.Render(status),
		styles.StatLabel.Render(fmt.Sprintf("Last: %s", lastRun)),
		styles.StatLabel.Render(fmt.Sprintf("Runs: %d", s.TotalRuns)),
		styles.StatLabel.Render(fmt.Sprintf("Rate: %.0f%%", s.SuccessRate*100)),
	)
	return styles.HandlerCardBorder.Width(24).Render(content)
}

func (d Dashboard) renderCityCards() string {
	if len(d.cityStats) == 0 {
		return ""
	}

	var cards []string
	for _, c := range d.cityStats {
		cards = append(cards, d.renderCityCard(c))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (d Dashboard) renderCityCard(c db.CityStats) string {
	avgPrice := "-"
	if c.AvgPrice > 0 {
		avgPrice = fmt.Sprintf("$%dk", c.AvgPrice/1000)
	}

	title := c.City
	if c.Province != "" {
		title = fmt.Sprintf("%s, %s", c.City, c.Province)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.StatValue.Render(truncate(title, 16)),
		styles.StatLabel.Render(fmt.Sprintf("Total: %d", c.Total)),
		styles.StatLabel.Render(fmt.Sprintf("Active: %d", c.Active)),
		styles.StatLabel.Render(fmt.Sprintf("Avg: %s", avgPrice)),
	)
	return styles.CityCardBorder.Width(20).Render(content)
}

func (d Dashboard) renderRunsTable() string {
	if len(d.runs) == 0 {
		return styles.Muted.Render("No runs yet")
	}

	header := fmt.Sprintf("%-8s %-13s %-10s %-10s %6s %6s %6s",
		"Handler", "Region", "Status", "Started", "Found", "Kept", "Errors")
	rows := styles.TableHeader.Render(header) + "\n"

	for _, r := range d.runs {
		status := r.Status
		statusStyle := styles.StatusPending
		switch r.Status {
		case "completed":
			statusStyle = styles.StatusSuccess
		case "failed":
			statusStyle = styles.StatusError
		}

		started := r.StartedAt.Format("15:04:05")
		row := fmt.Sprintf("%-8s %-13s %s %-10s %6d %6d %6d",
			truncate(r.Handler, 8),
			truncate(r.Region, 13),
			statusStyle.Render(fmt.Sprintf("%-10s", status)),
			started,
			r.ListingsFound,
			r.ListingsKept,
			r.ErrorsCount,
		)
		rows += row + "\n"
	}
	return rows
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return s[:max-1] + "…"
}
