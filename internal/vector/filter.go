package vector

// Payload filter grammar, shared by every Store implementation:
//
//	{field: literal}                  equality
//	{field: {$in: [v1, v2, ...]}}     match any
//	{field: {$gte/$gt/$lte/$lt: n}}   range; operators combine (AND)
//
// Multiple fields compose as AND. Range operators require numeric payload
// values; a non-numeric value never matches a range condition.

var rangeOps = map[string]bool{"$gte": true, "$gt": true, "$lte": true, "$lt": true}

// matchFilters reports whether a payload satisfies every filter condition.
// A nil or empty filter matches everything.
func matchFilters(payload, filters map[string]interface{}) bool {
	for field, cond := range filters {
		value, ok := payload[field]
		if !ok {
			return false
		}
		if !matchCondition(value, cond) {
			return false
		}
	}
	return true
}

func matchCondition(value, cond interface{}) bool {
	condMap, ok := cond.(map[string]interface{})
	if !ok {
		return literalEqual(value, cond)
	}

	if in, ok := condMap["$in"]; ok {
		if !matchIn(value, in) {
			return false
		}
	}
	for op := range rangeOps {
		if bound, ok := condMap[op]; ok {
			if !matchRange(value, op, bound) {
				return false
			}
		}
	}
	return true
}

func matchIn(value, in interface{}) bool {
	options, ok := in.([]interface{})
	if !ok {
		return false
	}
	for _, opt := range options {
		if literalEqual(value, opt) {
			return true
		}
	}
	return false
}

func matchRange(value interface{}, op string, bound interface{}) bool {
	v, vok := toFloat(value)
	b, bok := toFloat(bound)
	if !vok || !bok {
		return false
	}
	switch op {
	case "$gte":
		return v >= b
	case "$gt":
		return v > b
	case "$lte":
		return v <= b
	case "$lt":
		return v < b
	}
	return false
}

// literalEqual compares payload and filter literals. JSON round trips turn
// every number into float64, so numbers compare numerically regardless of the
// Go type they started as.
func literalEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
