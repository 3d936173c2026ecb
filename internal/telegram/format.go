package telegram

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

var (
	startTokenRe = regexp.MustCompile(`(?i)/start\s+\S+`)
	idshatRe     = regexp.MustCompile(`(?i)idshat\S*`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spacesRe     = regexp.MustCompile(`[ \t]{2,}`)
	urlRe        = regexp.MustCompile(`https?://[A-Za-z0-9._~:/?#\[\]@!$&'()*+,;=%-]+`)
)

// sanitizeText 清理用户输入：去掉深链参数和多余空白
func sanitizeText(text string) string {
	if text == "" {
		return text
	}
	text = startTokenRe.ReplaceAllString(text, "")
	text = idshatRe.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = spacesRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// hiddenLinksHTML 把文本中的链接替换为"点击这里"超链接，其余部分转义为 HTML
func hiddenLinksHTML(text string) string {
	var b strings.Builder
	last := 0
	for i, loc := range urlRe.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		label := "点击这里"
		if i > 0 {
			label = fmt.Sprintf("点击这里 (%d)", i+1)
		}
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, html.EscapeString(text[loc[0]:loc[1]]), label)
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

// formatInterval 以秒/分钟/小时显示重播间隔
func formatInterval(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d秒", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%d分钟", seconds/60)
	default:
		return fmt.Sprintf("%d小时", seconds/3600)
	}
}

// formatTime 以北京时间显示
func formatTime(t time.Time) string {
	return t.In(displayLocation()).Format("2006-01-02 15:04")
}

func displayLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}
