package collector

import (
	"bytes"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// articleSelectors 常见正文容器，按优先级排列；第一个命中任意元素的选择器即胜出
var articleSelectors = []string{
	"article",
	"[role='main']",
	".article-content",
	".post-content",
	"#content",
	".entry-content",
	".story-body",
	".article-body",
}

// ExtractPage 从原始 HTML 中提取标题与正文。
// script/style 子树先整体移除，它们的内容绝不能混进标题或正文；
// 标题取 <title>，缺失时退回 og:title，再缺失时退回页面 URL；
// 正文按 articleSelectors 的顺序取第一个命中元素的压平文本，
// 全部不命中时退回 <body> 全文。
// 解析失败只降级不报错：标题用 URL 兜底，正文为空。
func ExtractPage(rawHTML []byte, pageURL string) PageContent {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		log.Printf("extract page %s: parse html: %v", pageURL, err)
		return PageContent{Title: pageURL}
	}

	doc.Find("script, style").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
			title = strings.TrimSpace(og)
		}
	}
	if title == "" {
		title = pageURL
	}

	body, selector := extractMainText(doc)
	return PageContent{
		Title:    title,
		Body:     truncateRunes(body, bodyRuneLimit),
		Selector: selector,
	}
}

// extractMainText 依次尝试正文选择器。命中即取该元素文本，哪怕内容为空，
// 不再向后尝试，保证提取行为可预期
func extractMainText(doc *goquery.Document) (string, string) {
	for _, sel := range articleSelectors {
		found := doc.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		return collapseWhitespace(found.Text()), sel
	}

	if body := doc.Find("body").First(); body.Length() > 0 {
		return collapseWhitespace(body.Text()), ""
	}
	return collapseWhitespace(doc.Text()), ""
}
