// Package retry re-runs actions that fail with transient errors, such as a
// ledger commit that lost an optimistic version race.
package retry

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retry runs action until it succeeds or one of the strategies declines
// another attempt, returning the number of attempts made alongside the last
// error.
//
// Strategies are consulted in order and evaluation stops at the first one that
// declines, so strategies that sleep should be specified last.
func Retry(action Action, strategies ...Strategy) (attempts uint, err error) {
	for {
		attempts++

		err = action()
		if err == nil {
			return attempts, nil
		}

		for _, s := range strategies {
			if !s(attempts, err) {
				return attempts, err
			}
		}
	}
}
