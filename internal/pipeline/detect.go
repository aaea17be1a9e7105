package pipeline

import "strings"

type DetectResult struct {
	IsPriceList bool
	Score       float64
	Reason      string
}

var detectKeywords = []string{"price list", "pricelist", "price update", "pricing", "cost update", "quote sheet", "inventory"}

// DetectPriceList scores whether an inbound mail carries a supplier price
// list, from the subject, body and attachment names.
func DetectPriceList(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.3
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".csv") || strings.HasSuffix(ln, ".xlsx") || strings.HasSuffix(ln, ".xls") {
			score += 0.4
			break
		}
		if strings.HasSuffix(ln, ".pdf") {
			score += 0.2
			break
		}
	}

	if score > 1 {
		score = 1
	}

	isPriceList := score >= 0.4
	reason := "rules_negative"
	if isPriceList {
		reason = "rules_positive"
	}

	return DetectResult{IsPriceList: isPriceList, Score: score, Reason: reason}
}
