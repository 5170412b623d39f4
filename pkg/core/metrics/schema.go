package metrics

import (
	"balance_sheet_analyzer/pkg/models"

	"go.uber.org/zap"
)

var canonical = func() map[string]bool {
	m := make(map[string]bool, len(models.CanonicalMetrics))
	for _, k := range models.CanonicalMetrics {
		m[k] = true
	}
	return m
}()

// IsCanonical reports whether name is one of the 14 canonical metrics.
func IsCanonical(name string) bool {
	return canonical[name]
}

// Validate shapes a backend mapping into a MetricSet. It never fails:
// missing canonical keys become explicit nulls, present values are normalised,
// and unknown keys are carried through untouched in Extra.
func Validate(candidate map[string]interface{}) models.MetricSet {
	set := models.MetricSet{
		Values: make(map[string]*float64, len(models.CanonicalMetrics)),
		Extra:  make(map[string]interface{}),
	}

	for _, key := range models.CanonicalMetrics {
		raw, present := candidate[key]
		if !present || raw == nil {
			set.Values[key] = nil
			continue
		}
		v, ok := Normalize(raw)
		if !ok {
			zap.L().Warn("metric value is not a number, storing null",
				zap.String("metric", key),
				zap.Any("value", raw),
			)
			set.Values[key] = nil
			continue
		}
		set.Values[key] = &v
	}

	for key, raw := range candidate {
		if !canonical[key] {
			set.Extra[key] = raw
		}
	}

	return set
}
