package achievement

import "github.com/mathquest/mathquest/internal/domain"

// DetectKind maps a requirement schema to the kind it describes. Only keys
// with non-null values count. Rules are tried in a fixed priority order so
// schemas with overlapping keys keep the classification they were stored
// under.
func DetectKind(s domain.RequirementSchema) domain.RequirementKind {
	switch {
	case s.Has(domain.FieldComebackDays):
		return domain.KindComeback
	case s.Has(domain.FieldAttemptsCount) && s.Has(domain.FieldLogicAttemptsCount):
		return domain.KindMixte
	case s.Has(domain.FieldLogicAttemptsCount):
		return domain.KindLogicAttemptsCount
	case s.Has(domain.FieldAttemptsCount) &&
		!s.Has(domain.FieldConsecutiveCorrect) && !s.Has(domain.FieldSuccessRate):
		return domain.KindAttemptsCount
	case s.Has(domain.FieldMinAttempts) && s.Has(domain.FieldSuccessRate):
		return domain.KindSuccessRate
	case s.Has(domain.FieldExerciseType) || s.Has(domain.FieldConsecutiveCorrect):
		return domain.KindConsecutive
	case s.Has(domain.FieldMaxTime):
		return domain.KindMaxTime
	case s.Has(domain.FieldConsecutiveDays):
		return domain.KindConsecutiveDays
	case s.Has(domain.FieldPerfectDay):
		return domain.KindPerfectDay
	case s.Has(domain.FieldAllTypes):
		return domain.KindAllTypes
	case s.Has(domain.FieldMinPerType) || s.Has(domain.FieldMinCount):
		return domain.KindMinPerType
	default:
		return domain.KindUnknown
	}
}
