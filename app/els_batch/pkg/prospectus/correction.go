package prospectus

import "strings"

// correctionPhrases 更正申报说明书中出现的字样
var correctionPhrases = []string{"정 정 신 고", "정 정 보 고", "정정사항", "정정대상"}

// IsCorrection 任一段落包含更正字样即视为更正申报
func IsCorrection(d *Document) bool {
	for _, text := range d.Paragraphs() {
		for _, phrase := range correctionPhrases {
			if strings.Contains(text, phrase) {
				return true
			}
		}
	}
	return false
}
