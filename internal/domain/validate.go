package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var photoNoPattern = regexp.MustCompile(`^S\d{2}$`)

// ValidationError collects every problem found in a report.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "\n")
}

// ValidPhotoNo reports whether s is an S followed by exactly two digits.
func ValidPhotoNo(s string) bool {
	return photoNoPattern.MatchString(s)
}

// Validate checks every record and returns a *ValidationError listing all
// failures, or nil when the report can be exported.
func Validate(d *ReportData) error {
	if d == nil || len(d.Inspections) == 0 {
		return &ValidationError{Problems: []string{"the report has no inspection items"}}
	}

	var problems []string
	for i, rec := range d.Inspections {
		label := recordLabel(i, rec)
		photoNo := strings.TrimSpace(rec.PhotoNo)

		switch {
		case photoNo == "":
			problems = append(problems, label+": photo number is required")
		case !ValidPhotoNo(photoNo):
			problems = append(problems, fmt.Sprintf("%s: photo number %q must be S followed by two digits", label, photoNo))
		}
		if strings.TrimSpace(rec.Location) == "" {
			problems = append(problems, label+": location is required")
		}
		if strings.TrimSpace(rec.Comments) == "" {
			problems = append(problems, label+": comments are required")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func recordLabel(i int, rec InspectionRecord) string {
	if no := strings.TrimSpace(rec.PhotoNo); no != "" {
		return fmt.Sprintf("Item %d (%s)", i+1, no)
	}
	return fmt.Sprintf("Item %d", i+1)
}
