package reconcile

import "sync"

// settleAll runs every task concurrently and waits for all of them to
// finish, success or failure.  The returned slice is aligned with the
// input: errs[i] is task i's result.  One task failing never
// short-circuits the others; each sub-effect's outcome stays independent.
func settleAll(tasks ...func() error) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		go func(i int, task func() error) {
			defer wg.Done()
			errs[i] = task()
		}(i, task)
	}
	wg.Wait()
	return errs
}
