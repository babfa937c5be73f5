// Package export renders digests as PDF documents.
package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/accionlabs/intelhub/internal/models"
)

const (
	margin     = 10.0
	lineHeight = 5.5
	bodySize   = 10.0
)

// Filename returns the download name for a company's digest, e.g. "digest-Acme-Corp.pdf".
func Filename(company string) string {
	return "digest-" + strings.Join(strings.Fields(company), "-") + ".pdf"
}

// RegionSummary counts open positions per region, e.g. "EMEA: 2 | US: 1". Regions are sorted.
func RegionSummary(positions []models.OpenPosition) string {
	if len(positions) == 0 {
		return ""
	}
	counts := make(map[string]int)
	for _, p := range positions {
		region := p.Region
		if region == "" {
			region = "N/A"
		}
		counts[region]++
	}
	regions := make([]string, 0, len(counts))
	for r := range counts {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	parts := make([]string, 0, len(regions))
	for _, r := range regions {
		parts = append(parts, fmt.Sprintf("%s: %d", r, counts[r]))
	}
	return strings.Join(parts, " | ")
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// WritePDF renders d as an A4 portrait document to w.
func WritePDF(w io.Writer, d *models.Digest) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(d.CompanyName+" digest", true)
	pdf.SetCreator("intelhub", false)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pw := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.AddPage()
	pw.header(d)
	pw.body(d)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF for %s: %w", d.CompanyName, err)
	}
	return nil
}

// Render returns the PDF bytes for d.
func Render(d *models.Digest) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *writer) header(d *models.Digest) {
	w.pdf.SetFont("Helvetica", "B", 20)
	w.pdf.SetTextColor(15, 23, 42)
	w.pdf.MultiCell(0, 9, w.tr(d.CompanyName), "", "L", false)
	if !d.GeneratedAt.IsZero() {
		w.pdf.SetFont("Helvetica", "", 9)
		w.pdf.SetTextColor(100, 116, 139)
		w.pdf.CellFormat(0, 5, "Generated "+d.GeneratedAt.UTC().Format("2 January 2006 15:04 MST"), "", 1, "L", false, 0, "")
	}
	y := w.pdf.GetY() + 2
	w.pdf.SetDrawColor(226, 232, 240)
	w.pdf.Line(margin, y, 210-margin, y)
	w.pdf.SetY(y + 4)
}

func (w *writer) body(d *models.Digest) {
	if d.Overview != "" {
		w.section("Overview")
		w.paragraph(d.Overview)
	}
	if len(d.KeyHighlights) > 0 {
		w.section("Key Highlights")
		w.bullets(d.KeyHighlights)
	}

	if len(d.RevenueGrowth) > 0 || len(d.KeyFinancials) > 0 || len(d.QuarterlyReleases) > 0 {
		w.section("Financial Performance")
		if len(d.RevenueGrowth) > 0 {
			w.subheading("Quarterly Revenue Growth")
			rows := make([][2]string, 0, len(d.RevenueGrowth))
			for _, r := range d.RevenueGrowth {
				rows = append(rows, [2]string{r.Period, strconv.FormatFloat(r.Revenue, 'f', -1, 64) + "B"})
			}
			w.table("Period", "Revenue (USD)", rows)
		}
		if len(d.KeyFinancials) > 0 {
			w.subheading("Key Metrics")
			rows := make([][2]string, 0, len(d.KeyFinancials))
			for _, f := range d.KeyFinancials {
				rows = append(rows, [2]string{f.Metric, f.Value})
			}
			w.table("Metric", "Value", rows)
		}
		if len(d.QuarterlyReleases) > 0 {
			w.subheading("Quarterly Releases")
			w.bullets(d.QuarterlyReleases)
		}
	}

	if len(d.NewsAndPressReleases) > 0 {
		w.section("News and Press Releases")
		w.bullets(d.NewsAndPressReleases)
	}
	if len(d.NewJoiners) > 0 {
		w.section("New Joiners (CXO, VP)")
		w.bullets(d.NewJoiners)
	}
	if d.TechFocus != "" || len(d.TechDistribution) > 0 {
		w.section("Technology in Focus")
		if d.TechFocus != "" {
			w.paragraph(d.TechFocus)
		}
		if len(d.TechDistribution) > 0 {
			rows := make([][2]string, 0, len(d.TechDistribution))
			for _, t := range d.TechDistribution {
				rows = append(rows, [2]string{t.Tech, strconv.FormatFloat(t.Percentage, 'f', -1, 64) + "%"})
			}
			w.table("Technology", "Share", rows)
		}
	}
	if d.StrategicAndHiringInsights != "" {
		w.section("Strategic & Hiring Insights")
		w.paragraph(d.StrategicAndHiringInsights)
	}
	if len(d.OpenPositions) > 0 {
		w.section("Open Positions")
		w.paragraph("Positions by Region: " + RegionSummary(d.OpenPositions))
		for _, p := range d.OpenPositions {
			w.position(p)
		}
	}
	if len(d.AttentionPoints) > 0 {
		w.section("Attention Points for Accionlabs")
		w.bullets(d.AttentionPoints)
	}
	if len(d.Sources) > 0 {
		w.section("Further Reading & Sources")
		for _, s := range d.Sources {
			w.link(s)
		}
	}
}

func (w *writer) section(title string) {
	w.pdf.Ln(3)
	w.pdf.SetFont("Helvetica", "B", 13)
	w.pdf.SetTextColor(30, 41, 59)
	w.pdf.MultiCell(0, 7, w.tr(title), "", "L", false)
	w.pdf.Ln(1)
}

func (w *writer) subheading(title string) {
	w.pdf.SetFont("Helvetica", "B", 10.5)
	w.pdf.SetTextColor(51, 65, 85)
	w.pdf.MultiCell(0, 6, w.tr(title), "", "L", false)
}

func (w *writer) paragraph(text string) {
	w.pdf.SetFont("Helvetica", "", bodySize)
	w.pdf.SetTextColor(51, 65, 85)
	w.pdf.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
	w.pdf.Ln(1)
}

func (w *writer) bullets(items []string) {
	w.pdf.SetFont("Helvetica", "", bodySize)
	w.pdf.SetTextColor(51, 65, 85)
	for _, item := range items {
		w.pdf.SetX(margin + 2)
		w.pdf.CellFormat(4, lineHeight, w.tr("•"), "", 0, "L", false, 0, "")
		w.pdf.MultiCell(0, lineHeight, w.tr(item), "", "L", false)
	}
	w.pdf.Ln(1)
}

func (w *writer) table(left, right string, rows [][2]string) {
	const leftWidth, rightWidth = 95.0, 60.0
	w.pdf.SetFont("Helvetica", "B", 9)
	w.pdf.SetFillColor(248, 250, 252)
	w.pdf.SetTextColor(100, 116, 139)
	w.pdf.CellFormat(leftWidth, 6, w.tr(left), "1", 0, "L", true, 0, "")
	w.pdf.CellFormat(rightWidth, 6, w.tr(right), "1", 1, "L", true, 0, "")
	w.pdf.SetFont("Helvetica", "", 9)
	w.pdf.SetTextColor(51, 65, 85)
	for _, r := range rows {
		w.pdf.CellFormat(leftWidth, 6, w.tr(fit(r[0], 60)), "1", 0, "L", false, 0, "")
		w.pdf.CellFormat(rightWidth, 6, w.tr(fit(r[1], 38)), "1", 1, "L", false, 0, "")
	}
	w.pdf.Ln(2)
}

func (w *writer) position(p models.OpenPosition) {
	w.pdf.SetFont("Helvetica", "B", bodySize)
	w.pdf.SetTextColor(51, 65, 85)
	w.pdf.MultiCell(0, lineHeight, w.tr(p.Title), "", "L", false)

	var meta []string
	for _, s := range []string{p.Region, p.Source, p.DatePosted} {
		if s != "" {
			meta = append(meta, s)
		}
	}
	w.pdf.SetFont("Helvetica", "", 8.5)
	w.pdf.SetTextColor(100, 116, 139)
	if len(meta) > 0 {
		w.pdf.MultiCell(0, 4.5, w.tr(strings.Join(meta, " · ")), "", "L", false)
	}
	if p.Link != "" {
		w.pdf.SetTextColor(79, 70, 229)
		w.pdf.WriteLinkString(4.5, w.tr(p.Link), p.Link)
		w.pdf.Ln(4.5)
	}
	w.pdf.Ln(1.5)
}

func (w *writer) link(s models.Source) {
	title := s.Title
	if title == "" {
		title = s.Link
	}
	w.pdf.SetFont("Helvetica", "", 9)
	w.pdf.SetTextColor(79, 70, 229)
	w.pdf.WriteLinkString(5, w.tr(title), s.Link)
	w.pdf.Ln(5)
}

// fit shortens s to n runes for a fixed-width table cell.
func fit(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
