package views

import (
	"fmt"
	"strings"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type archiveMsg struct {
	listings []db.ArchivedListing
	total    int
}

type matchesMsg struct {
	matches []db.Match
}

type Archive struct {
	db            *db.Client
	width, height int
	on            bool
	listings      []db.ArchivedListing
	matches       []db.Match
	selectedRow   int
	activeOnly    bool
	dbPage        int // current database page (0-indexed)
	dbPageSize    int // items per database page
	totalRows     int // total rows in the archive
}

func NewArchive(dbClient *db.Client) Archive {
	return Archive{db: dbClient, on: dbClient.HasArchive(), dbPageSize: 100}
}

func (a Archive) Init() tea.Cmd {
	return a.Refresh()
}

func (a Archive) Refresh() tea.Cmd {
	return func() tea.Msg {
		listings, _ := a.db.ArchivedListings(a.dbPageSize, a.dbPage*a.dbPageSize, a.activeOnly)
		total, _ := a.db.ArchivedCount(a.activeOnly)
		return archiveMsg{listings, total}
	}
}

func (a Archive) SetSize(w, h int) Archive {
	a.width = w
	a.height = h
	return a
}

func (a Archive) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case archiveMsg:
		a.listings = msg.listings
		a.totalRows = msg.total
		if a.selectedRow >= len(a.listings) {
			a.selectedRow = 0
		}
		if len(a.listings) > 0 {
			return a, a.loadMatches(a.listings[a.selectedRow].Fingerprint)
		}

	case matchesMsg:
		a.matches = msg.matches

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height - 4

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if a.selectedRow > 0 {
				a.selectedRow--
				if len(a.listings) > 0 {
					return a, a.loadMatches(a.listings[a.selectedRow].Fingerprint)
				}
			}
		case "down", "j":
			if len(a.listings) > 0 && a.selectedRow < len(a.listings)-1 {
				a.selectedRow++
				return a, a.loadMatches(a.listings[a.selectedRow].Fingerprint)
			}
		case "pgdown", "ctrl+d":
			if len(a.listings) > 0 {
				a.selectedRow += 10
				if a.selectedRow >= len(a.listings) {
					a.selectedRow = len(a.listings) - 1
				}
				return a, a.loadMatches(a.listings[a.selectedRow].Fingerprint)
			}
		case "pgup", "ctrl+u":
			if len(a.listings) > 0 {
				a.selectedRow -= 10
				if a.selectedRow < 0 {
					a.selectedRow = 0
				}
				return a, a.loadMatches(a.listings[a.selectedRow].Fingerprint)
			}
		case "home", "g":
			if len(a.listings) > 0 {
				a.selectedRow = 0
				return a, a.loadMatches(a.listings[a.selectedRow].Fingerprint)
			}
		case "end", "G":
			if len(a.listings) > 0 {
				a.selectedRow = len(a.listings) - 1
				return a, a.loadMatches(a.listings[a.selectedRow].Fingerprint)
			}
		case "f":
			a.activeOnly = !a.activeOnly
			a.selectedRow = 0
			return a, a.Refresh()
		case "1", "2", "3", "4", "5", "6", "7", "8", "9", "0":
			// Jump to database page (1=page 1, 0=page 10)
			pageNum := int(msg.String()[0] - '0')
			if pageNum == 0 {
				pageNum = 10
			}
			totalPages := a.getTotalDBPages()
			if pageNum <= totalPages {
				a.dbPage = pageNum - 1
				a.selectedRow = 0
				return a, a.Refresh()
			}
		case "[":
			if a.dbPage > 0 {
				a.dbPage--
				a.selectedRow = 0
				return a, a.Refresh()
			}
		case "]":
			if a.dbPage < a.getTotalDBPages()-1 {
				a.dbPage++
				a.selectedRow = 0
				return a, a.Refresh()
			}
		}
	}
	return a, nil
}

func (a Archive) loadMatches(fingerprint string) tea.Cmd {
	return func() tea.Msg {
		matches, _ := a.db.MatchesFor(fingerprint)
		return matchesMsg{matches}
	}
}

func (a Archive) getVisibleRows() int {
	rows := 25
	if a.height > 0 {
		rows = (a.height * 60) / 100
		if rows < 10 {
			rows = 10
		}
	}
	return rows
}

func (a Archive) getTotalDBPages() int {
	if a.dbPageSize == 0 || a.totalRows == 0 {
		return 1
	}
	return (a.totalRows + a.dbPageSize - 1) / a.dbPageSize
}

func (a Archive) View() string {
	if !a.on {
		return lipgloss.JoinVertical(lipgloss.Left,
			styles.Title.Render("Archive"),
			"",
			styles.Muted.Render("No archive database configured. Set DATABASE_URL to keep listing history."),
		)
	}

	filterStatus := "All"
	if a.activeOnly {
		filterStatus = "Active only"
	}

	// Position counter shows the global position across all pages.
	globalPos := a.dbPage*a.dbPageSize + a.selectedRow + 1
	position := fmt.Sprintf("  %d/%d", globalPos, a.totalRows)
	pageInfo := fmt.Sprintf("  Page %d/%d", a.dbPage+1, a.getTotalDBPages())

	table := a.renderListingsTable()
	bottomPanel := a.renderBottomPanel()

	header := styles.Title.Render("Archive") +
		styles.StatValue.Render(position) +
		styles.StatLabel.Render(pageInfo) +
		"  " + styles.Muted.Render(fmt.Sprintf("[f] Filter: %s  [1-0] Page  [[ ]] Prev/Next", filterStatus))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		table,
		"",
		bottomPanel,
	)
}

func (a Archive) renderListingsTable() string {
	header := fmt.Sprintf("%-32s %-12s %9s %4s %4s %7s %-9s %4s %2s",
		"Address", "City", "Price", "Bed", "Bath", "SqFt", "Type", "Seen", "")
	rows := styles.TableHeader.Render(header) + "\n"

	visibleRows := a.getVisibleRows()

	// Scroll offset keeps the selected row visible.
	scrollOffset := 0
	if a.selectedRow >= visibleRows {
		scrollOffset = a.selectedRow - visibleRows + 1
	}

	endRow := scrollOffset + visibleRows
	if endRow > len(a.listings) {
		endRow = len(a.listings)
	}

	for i := scrollOffset; i < endRow; i++ {
		l := a.listings[i]
		price := "—"
		if l.Price > 0 {
			price = fmt.Sprintf("$%dK", l.Price/1000)
		}
		active := styles.Muted.Render("○")
		if l.IsActive {
			active = styles.StatusSuccess.Render("●")
		}

		row := fmt.Sprintf("%-32s %-12s %9s %4s %4s %7s %-9s %4d %2s",
			truncate(l.Address, 32),
			truncate(l.City, 12),
			price,
			formatCount(l.Bedrooms),
			formatCount(l.Bathrooms),
			formatSqft(l.SquareFeet),
			truncate(l.PropertyType, 9),
			l.TimesSeen,
			active,
		)

		if i == a.selectedRow {
			rows += styles.TableSelected.Render(row) + "\n"
		} else {
			rows += row + "\n"
		}
	}

	if len(a.listings) > visibleRows {
		rows += styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", scrollOffset+1, endRow, len(a.listings)))
	}

	return rows
}

func (a Archive) renderBottomPanel() string {
	history := a.renderHistory()
	details := a.renderDetails()

	historyBox := styles.CardBorder.Width(a.width/2 - 2).Render(
		styles.Title.Render("History") + "\n" + history,
	)
	detailsBox := styles.HandlerCardBorder.Width(a.width/2 - 2).Render(
		styles.Title.Render("Listing Details") + "\n" + details,
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, historyBox, detailsBox)
}

func (a Archive) renderHistory() string {
	if len(a.listings) == 0 {
		return styles.Muted.Render("Select a listing")
	}

	l := a.listings[a.selectedRow]

	status := styles.StatusSuccess.Render("active")
	if !l.IsActive {
		status = styles.StatusError.Render("delisted")
	}

	lines := []string{
		styles.StatLabel.Render("Status: ") + status,
		styles.StatLabel.Render("First seen: ") + l.FirstSeenAt.Format("2006-01-02"),
		styles.StatLabel.Render("Last seen: ") + relativeTime(l.LastSeenAt),
		styles.StatLabel.Render("Times seen: ") + fmt.Sprintf("%d", l.TimesSeen),
	}
	if !l.IsActive && l.DelistedAt != nil {
		lines = append(lines, styles.StatLabel.Render("Delisted: ")+l.DelistedAt.Format("2006-01-02"))
	}

	if len(a.matches) > 0 {
		lines = append(lines, "", styles.TableHeader.Render("Relist matches"))
		for _, m := range a.matches {
			other := m.IncomingFingerprint
			if other == l.Fingerprint {
				other = m.MatchedFingerprint
			}
			lines = append(lines, fmt.Sprintf("%3.0f%%  %-9s %s  %s",
				m.Confidence*100,
				truncate(m.Status, 9),
				truncate(other, 12),
				styles.Muted.Render(relativeTime(m.CreatedAt)),
			))
		}
	}

	return strings.Join(lines, "\n")
}

func (a Archive) renderDetails() string {
	if len(a.listings) == 0 {
		return styles.Muted.Render("Select a listing")
	}

	l := a.listings[a.selectedRow]
	lines := []string{
		fmt.Sprintf("MLS#: %s", l.MLSNumber),
		"",
	}

	if l.Description != "" {
		desc := l.Description
		if len(desc) > 200 {
			desc = desc[:200] + "..."
		}
		wrapped := wrapText(desc, a.width/2-6)
		lines = append(lines, wrapped...)
		lines = append(lines, "")
	}

	if l.AgentName != "" {
		lines = append(lines, styles.StatLabel.Render("Agent: ")+l.AgentName)
	}
	if l.Brokerage != "" {
		lines = append(lines, styles.StatLabel.Render("Brokerage: ")+l.Brokerage)
	}

	lines = append(lines, "", styles.Muted.Render(truncate(l.ListingURL, a.width/2-6)))

	return strings.Join(lines, "\n")
}

func formatCount(v float64) string {
	if v == 0 {
		return "—"
	}
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func formatSqft(sqft float64) string {
	if sqft == 0 {
		return "—"
	}
	n := int64(sqft)
	if n >= 1000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d", n)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 40
	}
	var lines []string
	words := strings.Fields(text)
	var line string
	for _, word := range words {
		if len(line)+len(word)+1 > width {
			lines = append(lines, line)
			line = word
		} else {
			if line != "" {
				line += " "
			}
			line += word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
