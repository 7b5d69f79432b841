package exchange

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mangashelf/pkg/models"
)

const emptyCell = "—"

// RenderMarkdown renders entries as one Markdown document. exportedAt is
// printed in UTC.
func RenderMarkdown(entries []models.Entry, exportedAt time.Time) string {
	var md []string
	md = append(md,
		"# Library Export",
		fmt.Sprintf("_Exported on %s_", exportedAt.UTC().Format("2006-01-02 15:04 MST")),
		"",
	)
	for _, e := range entries {
		md = append(md, renderEntry(e)...)
	}
	return strings.Join(md, "\n") + "\n"
}

func renderEntry(e models.Entry) []string {
	md := []string{"---", "", "## " + e.Title}

	var ident []string
	if e.Slug != "" {
		ident = append(ident, "**Slug:** "+e.Slug)
	}
	if len(e.AlternativeTitles) > 0 {
		ident = append(ident, "**AltTitles:** "+strings.Join(e.AlternativeTitles, ", "))
	}
	if len(ident) > 0 {
		md = append(md, "", "*("+strings.Join(ident, "; ")+")*")
	}

	var meta []string
	if e.Rating != nil {
		meta = append(meta, "- **Rating:** "+strconv.Itoa(*e.Rating)+"/10")
	}
	if e.Category != "" {
		meta = append(meta, "- **Category:** #"+e.Category)
	}
	if len(e.Tags) > 0 {
		meta = append(meta, "- **Tags:** "+strings.Join(e.Tags, ", "))
	}
	if len(e.Badges) > 0 {
		meta = append(meta, "- **Badges:** "+strings.Join(e.Badges, ", "))
	}
	if len(meta) > 0 {
		md = append(md, "")
		md = append(md, meta...)
	}

	if d := strings.TrimSpace(e.Description); d != "" {
		md = append(md, "", d)
	}

	cover := emptyCell
	if e.CoverImageURL != nil && *e.CoverImageURL != "" {
		cover = imgTag(*e.CoverImageURL, 120)
	}
	md = append(md,
		"",
		"| Cover | Cover Image |",
		"| :---: | :---------- |",
		"| Cover | "+cover+" |",
	)

	if len(e.Characters) > 0 {
		md = append(md,
			"",
			"**Characters**",
			"",
			"| Name | Image | Role | Tags | Alternative Names |",
			"| :--- | :---: | :--- | :--- | :---------------- |",
		)
		for _, c := range e.Characters {
			img := emptyCell
			if c.Image != "" {
				img = imgTag(c.Image, 100)
			}
			md = append(md, row(cell(c.Name), img, cell(c.Role), cell(strings.Join(c.Tags, ", ")), cell(strings.Join(c.AlternativeNames, ", "))))
		}
	}

	if len(e.Rows) > 0 {
		md = append(md,
			"",
			"**Chapters**",
			"",
			"| Chapter | Characters | Description | Tags |",
			"| :-----: | ---------- | ----------- | ---- |",
		)
		for _, r := range e.Rows {
			md = append(md, row(cell(r.ChapterSE), cell(r.Characters), cell(r.Description), cell(strings.Join(r.Tags, ", "))))
		}
	}

	return append(md, "")
}

func row(cells ...string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

// cell escapes a value for a single table cell.
func cell(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}

func imgTag(src string, width int) string {
	return fmt.Sprintf(`<img src="%s" width="%d" />`, strings.ReplaceAll(src, `"`, "%22"), width)
}
