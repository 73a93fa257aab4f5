package attention

import "fmt"

// panicError converts a recovered panic value into an error so panicking
// collaborators (enrichers, planners) degrade the same way as ones that
// return errors.
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
