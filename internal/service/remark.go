package service

import "strings"

// MaxRemarkWords caps completion and reopen remarks.
const MaxRemarkWords = 20

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// LimitWords keeps the first max words of s, joined by single spaces.
func LimitWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) > max {
		words = words[:max]
	}
	return strings.Join(words, " ")
}

// ValidateRemark checks a remark that must be present and within the word cap.
func ValidateRemark(remark string) error {
	n := CountWords(remark)
	switch {
	case n == 0:
		return ErrRemarkRequired
	case n > MaxRemarkWords:
		return ErrRemarkTooLong
	}
	return nil
}
