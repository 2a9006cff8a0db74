package leads

import "strings"

// Tier is the nurture workflow bucket a lead is routed to.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

const (
	HotThreshold       = 70
	WarmThreshold      = 40
	HighValueThreshold = 60
	maxScore           = 100
)

// Score rates a submission from 0 to 100. Each rule adds independently and
// the sum is clamped.
func Score(s *Submission) int {
	if s == nil {
		return 0
	}
	score := 0

	switch s.MonthlyRevenue {
	case RevenueAbove5M:
		score += 30
	case Revenue1MTo5M:
		score += 25
	case Revenue500KTo1M:
		score += 20
	case Revenue100KTo500K:
		score += 15
	}

	switch s.Timeline {
	case TimelineImmediately:
		score += 25
	case TimelineWithin30:
		score += 20
	case TimelineWithin90:
		score += 10
	}

	// CEO/Founder wins over any Director title.
	if s.Role == RoleCEOFounder {
		score += 20
	} else if strings.Contains(s.Role, "Director") {
		score += 15
	}

	if s.ROICalculatorData != nil {
		score += 15
	}

	// Substring match, case-sensitive.
	if strings.Contains(s.PrimaryChallenge, "losing money") || strings.Contains(s.PrimaryChallenge, "competitors") {
		score += 10
	}

	if score > maxScore {
		return maxScore
	}
	return score
}

// TierFor maps a score to its workflow tier.
func TierFor(score int) Tier {
	switch {
	case score >= HotThreshold:
		return TierHot
	case score >= WarmThreshold:
		return TierWarm
	default:
		return TierCold
	}
}

// IsHighValue reports whether the score earns a follow-up call.
func IsHighValue(score int) bool {
	return score >= HighValueThreshold
}

// Tags builds the CRM tag set for a submission.
func Tags(s *Submission) []string {
	tags := []string{"Transcenda Lead", "Landing Page"}
	if s == nil {
		return tags
	}
	if s.Industry != "" {
		tags = append(tags, "Industry: "+s.Industry)
	}
	if s.MonthlyRevenue != "" {
		tags = append(tags, "Revenue: "+s.MonthlyRevenue)
	}
	if s.Timeline == TimelineImmediately {
		tags = append(tags, "Hot Lead")
	}
	if s.ROICalculatorData != nil {
		tags = append(tags, "Used ROI Calculator")
	}
	return tags
}
