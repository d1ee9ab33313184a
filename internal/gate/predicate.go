package gate

// Static returns a Predicate that always answers ok.
func Static(ok bool) Predicate {
	return func([]string) (bool, error) { return ok, nil }
}

// All accepts tokens only when every predicate does. It stops at the first
// rejection or error.
func All(preds ...Predicate) Predicate {
	return func(tokens []string) (bool, error) {
		if len(preds) == 0 {
			return false, nil
		}
		for _, p := range preds {
			ok, err := p(tokens)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Any accepts tokens as soon as one predicate does. Errors from earlier
// predicates are ignored if a later one accepts; otherwise the first error
// is returned.
func Any(preds ...Predicate) Predicate {
	return func(tokens []string) (bool, error) {
		var firstErr error
		for _, p := range preds {
			ok, err := p(tokens)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if ok {
				return true, nil
			}
		}
		return false, firstErr
	}
}
