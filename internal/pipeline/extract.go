package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"tezbuild/internal"
)

// ParseCSVRows parses a header-led comma-separated price list into raw
// rows. Blank lines are skipped; short records leave trailing columns
// absent rather than empty.
func ParseCSVRows(data []byte) ([]internal.RawRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}

	headers := make([]string, 0, len(records[0]))
	for _, h := range records[0] {
		headers = append(headers, strings.TrimSpace(h))
	}

	out := make([]internal.RawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		row := internal.RawRow{}
		for i, value := range record {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			row[headers[i]] = value
		}
		out = append(out, row)
	}
	return out, nil
}

// ParseXLSXRows reads every sheet of a workbook, treating the first
// non-empty row of each sheet as the header row.
func ParseXLSXRows(content []byte) ([]internal.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.RawRow{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var headers []string
		for _, cells := range rows {
			if isBlank(cells) {
				continue
			}
			if headers == nil {
				headers = make([]string, 0, len(cells))
				for _, h := range cells {
					headers = append(headers, strings.TrimSpace(h))
				}
				continue
			}
			row := internal.RawRow{}
			for i, value := range cells {
				if i >= len(headers) || headers[i] == "" {
					continue
				}
				row[headers[i]] = value
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// ParseHTMLTableRows extracts raw rows from price-list tables embedded in
// an email body. The first table row supplies the column names.
func ParseHTMLTableRows(html string) ([]internal.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	out := []internal.RawRow{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(cell.Text()))
		})

		rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if isBlank(cells) {
				return
			}
			row := internal.RawRow{}
			for i, value := range cells {
				if i >= len(headers) || headers[i] == "" {
					continue
				}
				row[headers[i]] = value
			}
			out = append(out, row)
		})
	})
	return out, nil
}

var pdfColumnSplit = regexp.MustCompile(`\t+|\s{2,}`)

// ParsePDFRows is a best-effort extractor for tabular PDF price lists:
// lines are split on tabs or runs of spaces and the first multi-column
// line is taken as the header.
func ParsePDFRows(content []byte) ([]internal.RawRow, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, err
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return nil, err
	}

	var headers []string
	out := []internal.RawRow{}
	for _, line := range strings.Split(string(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cells := pdfColumnSplit.Split(line, -1)
		if len(cells) < 2 {
			continue
		}
		if headers == nil {
			headers = cells
			continue
		}
		row := internal.RawRow{}
		for i, value := range cells {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			row[headers[i]] = strings.TrimSpace(value)
		}
		out = append(out, row)
	}
	return out, nil
}

// ExtractRowsFromEmailRaw pulls price-list rows out of a raw RFC 5322
// message: CSV, XLSX and PDF attachments first, HTML body tables as the
// fallback when no attachment yielded anything.
func ExtractRowsFromEmailRaw(raw []byte) (rows []internal.RawRow, subject, text string, attachmentNames []string, err error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", nil, err
	}

	rows = []internal.RawRow{}
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)

		var extra []internal.RawRow
		var parseErr error
		switch {
		case strings.HasSuffix(strings.ToLower(filename), ".csv"):
			extra, parseErr = ParseCSVRows(att.Content)
		case strings.HasSuffix(strings.ToLower(filename), ".xlsx"),
			strings.HasSuffix(strings.ToLower(filename), ".xls"):
			extra, parseErr = ParseXLSXRows(att.Content)
		case strings.HasSuffix(strings.ToLower(filename), ".pdf"):
			extra, parseErr = ParsePDFRows(att.Content)
		default:
			continue
		}
		if parseErr != nil {
			fmt.Printf("skipping attachment %s: %v\n", filename, parseErr)
			continue
		}
		rows = append(rows, extra...)
	}

	if len(rows) == 0 && env.HTML != "" {
		extra, parseErr := ParseHTMLTableRows(env.HTML)
		if parseErr == nil {
			rows = append(rows, extra...)
		}
	}

	return rows, env.GetHeader("Subject"), env.Text, attachmentNames, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
