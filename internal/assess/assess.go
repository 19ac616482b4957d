// Package assess scores standardized intake assessments.
package assess

// Score sums numeric answers and maps the total onto the instrument's
// severity bands. Unknown instruments get a total with no severity label.
func Score(assessmentType string, responses map[string]any) (int, string) {
	total := 0
	for _, v := range responses {
		switch n := v.(type) {
		case float64:
			total += int(n)
		case int:
			total += n
		}
	}

	switch assessmentType {
	case "phq9":
		return total, phq9Severity(total)
	case "gad7":
		return total, gad7Severity(total)
	default:
		return total, ""
	}
}

func phq9Severity(total int) string {
	switch {
	case total >= 20:
		return "severe"
	case total >= 15:
		return "moderately severe"
	case total >= 10:
		return "moderate"
	case total >= 5:
		return "mild"
	default:
		return "minimal"
	}
}

func gad7Severity(total int) string {
	switch {
	case total >= 15:
		return "severe"
	case total >= 10:
		return "moderate"
	case total >= 5:
		return "mild"
	default:
		return "minimal"
	}
}
